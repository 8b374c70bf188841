package wsconn

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ffx64/presence-bridge/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type primary struct {
	handler *Handler
	srv     *httptest.Server

	mu     sync.Mutex
	events []remote.Event
}

func newPrimary(t *testing.T) *primary {
	p := &primary{}
	p.handler = NewHandler(func(ev remote.Event) {
		p.mu.Lock()
		p.events = append(p.events, ev)
		p.mu.Unlock()
	}, nil)
	p.srv = httptest.NewServer(p.handler)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *primary) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http")
}

func (p *primary) received() []remote.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]remote.Event(nil), p.events...)
}

func connectedStore(t *testing.T, p *primary) *remote.Store {
	peers := p.handler.Peers()
	store := remote.NewStore(nil, nil)
	store.Attach(New(p.url(), store, nil))
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, store.Reconnect(ctx))
	require.True(t, store.Connected())
	require.Eventually(t, func() bool { return p.handler.Peers() == peers+1 }, 2*time.Second, 10*time.Millisecond)
	return store
}

func TestSendProxyEvent(t *testing.T) {
	p := newPrimary(t)
	store := connectedStore(t, p)

	fallback, err := store.ImageFailed(context.Background(), "http://srv/cover?id=1&size=600")
	require.NoError(t, err)
	assert.Equal(t, "http://srv/cover?id=1", fallback)
	require.NoError(t, store.Send(context.Background(), remote.VolumeEvent(30)))

	require.Eventually(t, func() bool { return len(p.received()) == 2 }, 2*time.Second, 10*time.Millisecond)
	events := p.received()
	assert.Equal(t, remote.EventProxy, events[0].Name)
	assert.Nil(t, events[0].Payload)
	assert.Equal(t, remote.EventVolume, events[1].Name)
}

func TestBroadcastUpdatesStore(t *testing.T) {
	p := newPrimary(t)
	store := connectedStore(t, p)

	playing := true
	require.NoError(t, p.handler.Broadcast(remote.Update{
		NowPlaying: &remote.NowPlaying{Title: "Nude", Artist: "Radiohead", ImageURL: "http://srv/cover?id=2"},
		Playing:    &playing,
	}))

	require.Eventually(t, func() bool {
		st := store.State()
		return st.NowPlaying != nil && st.NowPlaying.Title == "Nude" && st.Playing
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Radiohead", store.State().NowPlaying.Artist)
}

func TestPrimaryGoneThenReconnect(t *testing.T) {
	p := newPrimary(t)
	store := connectedStore(t, p)

	p.handler.CloseAll()
	require.Eventually(t, func() bool {
		return store.State().Connection == remote.Disconnected
	}, 2*time.Second, 10*time.Millisecond)
	assert.Error(t, store.Send(context.Background(), remote.ProxyImageEvent()))

	require.NoError(t, store.Reconnect(context.Background()))
	assert.True(t, store.Connected())
}

func TestConnectFailure(t *testing.T) {
	store := remote.NewStore(nil, nil)
	conn := New("ws://127.0.0.1:1/remote", store, nil)
	store.Attach(conn)

	assert.Error(t, store.Reconnect(context.Background()))
	assert.Equal(t, remote.Disconnected, store.State().Connection)
	assert.ErrorIs(t, conn.Send(context.Background(), remote.ProxyImageEvent()), ErrNotConnected)
	assert.NoError(t, conn.Close())
}

func TestConcurrentBroadcastsReachEverySurface(t *testing.T) {
	p := newPrimary(t)
	first := connectedStore(t, p)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			vol := i
			assert.NoError(t, p.handler.Broadcast(remote.Update{Volume: &vol}))
		}()
	}
	second := connectedStore(t, p)
	wg.Wait()

	final := 100
	require.NoError(t, p.handler.Broadcast(remote.Update{Volume: &final}))
	for _, s := range []*remote.Store{first, second} {
		require.Eventually(t, func() bool { return s.State().Volume == final }, 2*time.Second, 10*time.Millisecond)
	}
}

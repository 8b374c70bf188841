package remote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	sink Sink

	mu       sync.Mutex
	connects int
	sent     []Event
	connErr  error
	confirm  bool
	closed   bool
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connects++
	err, confirm := f.connErr, f.confirm
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if confirm {
		f.sink.SetConnectionState(Connected)
	}
	return nil
}

func (f *fakeTransport) Send(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

type memPrefs struct {
	mu    sync.Mutex
	p     Prefs
	saves int
}

func (m *memPrefs) Load() (Prefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.p, nil
}

func (m *memPrefs) Save(p Prefs) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.p = p
	m.saves++
	return nil
}

func newTestStore(confirm bool) (*Store, *fakeTransport) {
	s := NewStore(nil, nil)
	t := &fakeTransport{sink: s, confirm: confirm}
	s.Attach(t)
	return s, t
}

func TestNewStoreDefaults(t *testing.T) {
	s := NewStore(nil, nil)
	st := s.State()
	assert.Equal(t, Disconnected, st.Connection)
	assert.False(t, s.Connected())
	assert.True(t, s.ShowImage())
	assert.False(t, s.IsDark())
}

func TestNewStoreLoadsPrefs(t *testing.T) {
	s := NewStore(&memPrefs{p: Prefs{ShowImage: false, Dark: true}}, nil)
	assert.False(t, s.ShowImage())
	assert.True(t, s.IsDark())
}

func TestToggleShowImageTwice(t *testing.T) {
	prefs := &memPrefs{p: DefaultPrefs()}
	s := NewStore(prefs, nil)
	before := s.ShowImage()

	assert.Equal(t, !before, s.ToggleShowImage())
	assert.Equal(t, !before, prefs.p.ShowImage)
	assert.Equal(t, before, s.ToggleShowImage())
	assert.Equal(t, before, s.ShowImage())
	assert.Equal(t, 2, prefs.saves)
}

func TestToggleDarkTwice(t *testing.T) {
	s := NewStore(nil, nil)
	assert.True(t, s.ToggleDark())
	assert.False(t, s.ToggleDark())
	assert.False(t, s.IsDark())
}

func TestReconnectWhileConnectedIsNoop(t *testing.T) {
	s, tr := newTestStore(true)
	s.SetConnectionState(Connected)

	require.NoError(t, s.Reconnect(context.Background()))
	assert.Zero(t, tr.connectCount())

	s.SetConnectionState(Connecting)
	require.NoError(t, s.Reconnect(context.Background()))
	assert.Zero(t, tr.connectCount())
}

func TestReconnectFromDisconnected(t *testing.T) {
	s, tr := newTestStore(true)
	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, 1, tr.connectCount())
	assert.True(t, s.Connected())
}

func TestReconnectWaitsForTransportConfirmation(t *testing.T) {
	s, _ := newTestStore(false)
	require.NoError(t, s.Reconnect(context.Background()))
	assert.Equal(t, Connecting, s.State().Connection)
	assert.False(t, s.Connected())

	s.SetConnectionState(Connected)
	assert.True(t, s.Connected())
}

func TestReconnectFailureReturnsToDisconnected(t *testing.T) {
	s, tr := newTestStore(true)
	tr.connErr = errors.New("refused")
	assert.Error(t, s.Reconnect(context.Background()))
	assert.Equal(t, Disconnected, s.State().Connection)
}

func TestWithoutTransport(t *testing.T) {
	s := NewStore(nil, nil)
	assert.ErrorIs(t, s.Send(context.Background(), ProxyImageEvent()), ErrNoTransport)
	assert.ErrorIs(t, s.Reconnect(context.Background()), ErrNoTransport)
}

func TestImageFailedSendsProxy(t *testing.T) {
	s, tr := newTestStore(true)
	fallback, err := s.ImageFailed(context.Background(), "https://music.example/img?id=7&size=300&width=300&height=300")
	require.NoError(t, err)
	assert.Equal(t, "https://music.example/img?id=7", fallback)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, EventProxy, tr.sent[0].Name)
	assert.Empty(t, tr.sent[0].Payload)
}

func TestApplyUpdateMerges(t *testing.T) {
	s := NewStore(nil, nil)
	playing := true
	vol := 40
	s.ApplyUpdate(Update{NowPlaying: &NowPlaying{Title: "Reckoner"}, Playing: &playing, Volume: &vol})

	pos := 12.5
	s.ApplyUpdate(Update{Position: &pos})

	st := s.State()
	require.NotNil(t, st.NowPlaying)
	assert.Equal(t, "Reckoner", st.NowPlaying.Title)
	assert.True(t, st.Playing)
	assert.Equal(t, 40, st.Volume)
	assert.Equal(t, 12.5, st.Position)

	st.NowPlaying.Title = "mutated"
	assert.Equal(t, "Reckoner", s.State().NowPlaying.Title)
}

func TestWatchEmitsDistinctValues(t *testing.T) {
	s := NewStore(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := Watch(ctx, s, func(st State) ConnectionState { return st.Connection })
	assert.Equal(t, Disconnected, recv(t, ch))

	s.ApplyUpdate(Update{}) // changes nothing watched
	s.SetConnectionState(Connecting)
	assert.Equal(t, Connecting, recv(t, ch))
	s.SetConnectionState(Connected)
	assert.Equal(t, Connected, recv(t, ch))

	cancel()
	for range ch {
	}
}

func TestSubscribeCancel(t *testing.T) {
	s := NewStore(nil, nil)
	calls := make(chan State, 8)
	stop := s.Subscribe(func(st State) { calls <- st })

	s.ToggleDark()
	st := <-calls
	assert.True(t, st.IsDark)

	stop()
	stop()
	s.ToggleDark()
	select {
	case <-calls:
		t.Fatal("callback after cancel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestApplyPrefsSkipsUnchanged(t *testing.T) {
	s := NewStore(nil, nil)
	calls := make(chan State, 8)
	defer s.Subscribe(func(st State) { calls <- st })()

	s.ApplyPrefs(DefaultPrefs())
	s.ApplyPrefs(Prefs{ShowImage: false, Dark: true})
	st := <-calls
	assert.False(t, st.ShowImage)
	assert.True(t, st.IsDark)
	select {
	case <-calls:
		t.Fatal("unchanged prefs must not notify")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseClosesTransport(t *testing.T) {
	s, tr := newTestStore(true)
	stop := s.Subscribe(func(State) {})
	require.NoError(t, s.Close())
	stop()
	assert.True(t, tr.closed)
	assert.ErrorIs(t, s.Send(context.Background(), ProxyImageEvent()), ErrNoTransport)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

// gatedPrefs blocks the first Save until released.
type gatedPrefs struct {
	memPrefs
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPrefs) Save(p Prefs) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.memPrefs.Save(p)
}

func TestConcurrentTogglesPersistInOrder(t *testing.T) {
	prefs := &gatedPrefs{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewStore(prefs, nil)
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.ToggleDark() }()
	<-prefs.entered
	go func() { defer wg.Done(); s.ToggleDark() }()
	time.Sleep(20 * time.Millisecond)
	close(prefs.release)
	wg.Wait()

	saved, err := prefs.Load()
	require.NoError(t, err)
	assert.False(t, s.IsDark())
	assert.Equal(t, s.IsDark(), saved.Dark)
	assert.Equal(t, 2, prefs.saves)
}

// Package remote is the state container behind a remote-control surface.
//
// A Store mirrors playback state pushed by the primary process, keeps the
// surface's display preferences and forwards surface events back through a
// Transport. Each surface owns its own Store.
package remote

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

var ErrNoTransport = errors.New("no transport attached")

var _ Sink = (*Store)(nil)

// Transport carries events to the primary process. Implementations report
// connection changes and pushed updates through the Sink they were built
// with.
type Transport interface {
	Connect(ctx context.Context) error
	Send(ctx context.Context, ev Event) error
	Close() error
}

// Sink receives what a Transport learns about the primary process.
type Sink interface {
	SetConnectionState(ConnectionState)
	ApplyUpdate(Update)
}

type Preferences interface {
	Load() (Prefs, error)
	Save(Prefs) error
}

type subscriber struct {
	signal chan struct{}
	done   chan struct{}
}

type Store struct {
	logger *slog.Logger
	prefs  Preferences
	// saveMu keeps toggles and their saves in the same order
	saveMu sync.Mutex

	mu        sync.Mutex
	state     State
	transport Transport
	subs      map[uint64]*subscriber
	nextSub   uint64
}

// NewStore builds a disconnected store. prefs may be nil, in which case
// preferences start from DefaultPrefs and are not persisted.
func NewStore(prefs Preferences, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	p := DefaultPrefs()
	if prefs != nil {
		loaded, err := prefs.Load()
		if err != nil {
			logger.Warn("failed to load remote preferences", "error", err)
		} else {
			p = loaded
		}
	}
	return &Store{
		logger: logger,
		prefs:  prefs,
		state:  State{ShowImage: p.ShowImage, IsDark: p.Dark},
		subs:   map[uint64]*subscriber{},
	}
}

// Attach sets the transport used by Send and Reconnect.
func (s *Store) Attach(t Transport) {
	s.mu.Lock()
	s.transport = t
	s.mu.Unlock()
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.NowPlaying != nil {
		np := *st.NowPlaying
		st.NowPlaying = &np
	}
	return st
}

// Select reads one value out of the store's current state.
func Select[T any](s *Store, selector func(State) T) T {
	return selector(s.State())
}

func (s *Store) Connected() bool { return s.State().Connection == Connected }
func (s *Store) ShowImage() bool { return s.State().ShowImage }
func (s *Store) IsDark() bool    { return s.State().IsDark }

// Subscribe calls fn with the latest state after changes. Rapid changes may
// be coalesced into one call. The returned func stops the subscription.
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	sub := &subscriber{signal: make(chan struct{}, 1), done: make(chan struct{})}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.signal:
				fn(s.State())
			case <-sub.done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			_, live := s.subs[id]
			delete(s.subs, id)
			s.mu.Unlock()
			if live {
				close(sub.done)
			}
		})
	}
}

// Watch emits the selected value now and again every time it changes,
// until ctx is done.
func Watch[T comparable](ctx context.Context, s *Store, selector func(State) T) <-chan T {
	out := make(chan T, 1)
	changed := make(chan struct{}, 1)
	cancel := s.Subscribe(func(State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	go func() {
		defer close(out)
		defer cancel()
		last := Select(s, selector)
		select {
		case out <- last:
		case <-ctx.Done():
			return
		}
		for {
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
			v := Select(s, selector)
			if v == last {
				continue
			}
			last = v
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// update mutates the state under the lock and wakes subscribers when fn
// reports a change.
func (s *Store) update(fn func(*State) bool) {
	s.mu.Lock()
	changed := fn(&s.state)
	if changed {
		for _, sub := range s.subs {
			select {
			case sub.signal <- struct{}{}:
			default:
			}
		}
	}
	s.mu.Unlock()
}

func (s *Store) SetConnectionState(cs ConnectionState) {
	s.update(func(st *State) bool {
		if st.Connection == cs {
			return false
		}
		s.logger.Debug("remote connection state", "from", st.Connection.String(), "to", cs.String())
		st.Connection = cs
		return true
	})
}

func (s *Store) ApplyUpdate(u Update) {
	s.update(func(st *State) bool {
		if u.NowPlaying != nil {
			np := *u.NowPlaying
			st.NowPlaying = &np
		}
		if u.Playing != nil {
			st.Playing = *u.Playing
		}
		if u.Volume != nil {
			st.Volume = *u.Volume
		}
		if u.Position != nil {
			st.Position = *u.Position
		}
		return true
	})
}

// ApplyPrefs replaces the display preferences without persisting them,
// e.g. after another surface saved new ones.
func (s *Store) ApplyPrefs(p Prefs) {
	s.update(func(st *State) bool {
		if st.prefs() == p {
			return false
		}
		st.ShowImage = p.ShowImage
		st.IsDark = p.Dark
		return true
	})
}

// Send forwards ev to the primary process without waiting for an answer.
func (s *Store) Send(ctx context.Context, ev Event) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return ErrNoTransport
	}
	return errors.Wrapf(t.Send(ctx, ev), "send %s", ev.Name)
}

// ImageFailed reports that src could not be loaded. It asks the primary
// process to proxy artwork and returns the URL to request through the proxy.
func (s *Store) ImageFailed(ctx context.Context, src string) (string, error) {
	return NormalizeImageURL(src), s.Send(ctx, ProxyImageEvent())
}

// Reconnect asks the transport to connect again. It only acts from
// Disconnected; the state stays short of Connected until the transport
// confirms.
func (s *Store) Reconnect(ctx context.Context) error {
	s.mu.Lock()
	t := s.transport
	s.mu.Unlock()
	if t == nil {
		return ErrNoTransport
	}

	start := false
	s.update(func(st *State) bool {
		if st.Connection != Disconnected {
			return false
		}
		st.Connection = Connecting
		start = true
		return true
	})
	if !start {
		return nil
	}
	if err := t.Connect(ctx); err != nil {
		s.SetConnectionState(Disconnected)
		return errors.Wrap(err, "reconnect")
	}
	return nil
}

func (s *Store) ToggleShowImage() bool {
	return s.togglePref(func(st *State) *bool { return &st.ShowImage })
}

func (s *Store) ToggleDark() bool {
	return s.togglePref(func(st *State) *bool { return &st.IsDark })
}

func (s *Store) togglePref(field func(*State) *bool) bool {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	var (
		value bool
		prefs Prefs
	)
	s.update(func(st *State) bool {
		f := field(st)
		*f = !*f
		value = *f
		prefs = st.prefs()
		return true
	})
	if s.prefs != nil {
		if err := s.prefs.Save(prefs); err != nil {
			s.logger.Warn("failed to save remote preferences", "error", err)
		}
	}
	return value
}

// Close detaches and closes the transport and ends every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	t := s.transport
	s.transport = nil
	subs := s.subs
	s.subs = map[uint64]*subscriber{}
	s.mu.Unlock()

	for _, sub := range subs {
		close(sub.done)
	}
	if t != nil {
		return t.Close()
	}
	return nil
}

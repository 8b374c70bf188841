package bridge

import (
	"encoding/json"
	"errors"
	"sync"
)

// fakeService records what the presence service would display.
type fakeService struct {
	mu       sync.Mutex
	live     int
	maxLive  int
	created  []*fakePresence
	failNext error
}

func (s *fakeService) factory(clientID string) Presence {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &fakePresence{svc: s, clientID: clientID}
	s.created = append(s.created, p)
	return p
}

func (s *fakeService) liveConnections() []*fakePresence {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*fakePresence
	for _, p := range s.created {
		if p.connected {
			out = append(out, p)
		}
	}
	return out
}

type fakePresence struct {
	svc       *fakeService
	clientID  string
	connected bool
	activity  json.RawMessage
}

func (p *fakePresence) Connect() error {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	if err := p.svc.failNext; err != nil {
		p.svc.failNext = nil
		return err
	}
	p.connected = true
	p.svc.live++
	if p.svc.live > p.svc.maxLive {
		p.svc.maxLive = p.svc.live
	}
	return nil
}

func (p *fakePresence) IsConnected() bool {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	return p.connected
}

func (p *fakePresence) SetActivity(activity json.RawMessage) error {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	if !p.connected {
		return errors.New("not connected")
	}
	p.activity = activity
	return nil
}

func (p *fakePresence) ClearActivity() error {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	p.activity = nil
	return nil
}

func (p *fakePresence) Close() error {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	if p.connected {
		p.connected = false
		p.svc.live--
	}
	return nil
}

func (p *fakePresence) displayed() json.RawMessage {
	p.svc.mu.Lock()
	defer p.svc.mu.Unlock()
	return p.activity
}

package bridge

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrHostStopped = errors.New("presence host stopped")

type hostCall struct {
	req   Request
	reply chan Response
}

// Host owns the presence connection. Commands from every caller funnel
// through Run, so there is never more than one live connection and a second
// initialize always supersedes the first.
type Host struct {
	factory Factory
	logger  *slog.Logger
	calls   chan hostCall
	done    chan struct{}

	// owned by the Run goroutine
	presence Presence
	clientID string
	handle   string
}

func NewHost(factory Factory, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		factory: factory,
		logger:  logger,
		calls:   make(chan hostCall),
		done:    make(chan struct{}),
	}
}

// Run processes commands until ctx is cancelled, then tears the presence
// connection down.
func (h *Host) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.teardown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case call := <-h.calls:
			resp := h.dispatch(call.req)
			resp.ID = call.req.ID
			resp.Kind = call.req.Kind
			call.reply <- resp
		}
	}
}

// Do hands req to the Run loop and waits for its response.
func (h *Host) Do(ctx context.Context, req Request) (Response, error) {
	call := hostCall{req: req, reply: make(chan Response, 1)}
	select {
	case h.calls <- call:
	case <-h.done:
		return Response{}, ErrHostStopped
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	select {
	case resp := <-call.reply:
		return resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (h *Host) dispatch(req Request) Response {
	switch req.Kind {
	case KindInitialize:
		return h.initialize(req.ClientID)
	case KindIsConnected:
		return Response{Connected: h.presence != nil && h.presence.IsConnected()}
	case KindSetActivity:
		if h.presence == nil {
			h.logger.Debug("set activity without presence connection ignored")
			return Response{}
		}
		return errResponse(h.presence.SetActivity(req.Activity))
	case KindClearActivity:
		if h.presence == nil {
			h.logger.Debug("clear activity without presence connection ignored")
			return Response{}
		}
		return errResponse(h.presence.ClearActivity())
	case KindQuit:
		h.teardown()
		return Response{}
	}
	return Response{Error: "unknown command " + string(req.Kind)}
}

func (h *Host) initialize(clientID string) Response {
	if clientID == "" {
		return Response{Error: "empty client id"}
	}
	h.teardown()

	p := h.factory(clientID)
	if err := p.Connect(); err != nil {
		h.logger.Warn("presence connect failed", "client_id", clientID, "error", err)
		_ = p.Close()
		return errResponse(err)
	}
	h.presence = p
	h.clientID = clientID
	h.handle = uuid.NewString()
	h.logger.Info("presence connected", "client_id", clientID, "handle", h.handle)
	return Response{Handle: h.handle}
}

func (h *Host) teardown() {
	if h.presence == nil {
		return
	}
	if err := h.presence.Close(); err != nil {
		h.logger.Warn("presence close failed", "client_id", h.clientID, "error", err)
	}
	h.logger.Info("presence closed", "client_id", h.clientID, "handle", h.handle)
	h.presence = nil
	h.clientID = ""
	h.handle = ""
}

func errResponse(err error) Response {
	if err == nil {
		return Response{}
	}
	return Response{Error: err.Error()}
}

package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"

	"github.com/ffx64/presence-bridge/internal/codec"
	"github.com/ffx64/presence-bridge/transport/ipc"
	"golang.org/x/sync/errgroup"
)

// Serve accepts callers on l and forwards their commands to h until ctx is
// cancelled. Commands from one connection reach the host in the order they
// were written.
func Serve(ctx context.Context, l net.Listener, h *Host, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		return l.Close()
	})
	g.Go(func() error {
		for {
			nc, err := l.Accept()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return nil
				}
				return err
			}
			conn := ipc.NewConn(nc)
			g.Go(func() error {
				serveConn(ctx, conn, h, logger)
				return nil
			})
		}
	})
	return g.Wait()
}

func serveConn(ctx context.Context, conn *ipc.Conn, h *Host, logger *slog.Logger) {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	defer conn.Close()

	for {
		op, raw, err := conn.Receive()
		if err != nil {
			return
		}
		if op != ipc.OpFrame {
			logger.Debug("ignoring bridge frame", "op", op.String())
			continue
		}
		resp := handleFrame(ctx, h, raw)
		if err := conn.SendOp(ipc.OpFrame, resp); err != nil {
			logger.Debug("bridge reply failed", "id", resp.ID, "error", err)
			return
		}
	}
}

func handleFrame(ctx context.Context, h *Host, raw json.RawMessage) Response {
	var req Request
	if err := codec.Unmarshal(raw, &req); err != nil {
		return Response{Error: "malformed request: " + err.Error()}
	}
	if !req.Kind.Valid() {
		return Response{ID: req.ID, Kind: req.Kind, Error: "unknown command " + string(req.Kind)}
	}
	resp, err := h.Do(ctx, req)
	if err != nil {
		return Response{ID: req.ID, Kind: req.Kind, Error: err.Error()}
	}
	return resp
}

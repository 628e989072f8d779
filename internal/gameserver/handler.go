// Package gameserver implements the server side of the Connect Four protocol:
// the per-connection lobby loop, the operator room listing and the gRPC
// health service.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/connect4/internal/game"
	"github.com/cory-johannsen/connect4/internal/match"
	"github.com/cory-johannsen/connect4/internal/protocol"
)

// Handler drives one client from login through the lobby into a game.
type Handler struct {
	registry *match.Registry
	logger   *zap.Logger
}

// NewHandler creates a Handler backed by registry.
//
// Precondition: registry and logger must be non-nil.
func NewHandler(registry *match.Registry, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, logger: logger}
}

// HandleConn runs the lobby protocol on conn. The first frame must be a
// login; afterwards the client may list, create or connect until it enters
// a game.
//
// Postcondition: Returns when the client's game ends, the client violates the
// protocol, the connection fails, or ctx is cancelled.
func (h *Handler) HandleConn(ctx context.Context, conn protocol.Conn) error {
	addr := conn.RemoteAddr()

	env, err := protocol.ReceiveEnvelope(conn)
	if err != nil {
		return h.fail(conn, err)
	}
	if env.Command != protocol.CmdLogin {
		return h.fail(conn, fmt.Errorf("%w: expected login, got %q", protocol.ErrProtocolViolation, env.Command))
	}
	name, err := env.Username()
	if err != nil {
		return h.fail(conn, err)
	}

	logger := h.logger.With(zap.String("remote_addr", addr), zap.String("username", name))
	logger.Info("player logged in")

	if err := conn.Send(h.registry.RoomList()); err != nil {
		return err
	}

	for {
		env, err := protocol.ReceiveEnvelope(conn)
		if err != nil {
			return h.fail(conn, err)
		}

		switch env.Command {
		case protocol.CmdList:
			if err := conn.Send(h.registry.RoomList()); err != nil {
				return err
			}

		case protocol.CmdCreate:
			return h.host(ctx, name, conn, logger)

		case protocol.CmdConnect:
			session, err := h.join(env, name, conn)
			if errors.Is(err, match.ErrRoomNotFound) {
				logger.Debug("join rejected", zap.Error(err))
				if err := protocol.SendError(conn, err); err != nil {
					return err
				}
				if err := conn.Send(h.registry.RoomList()); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
			return h.play(ctx, session)

		default:
			return h.fail(conn, fmt.Errorf("%w: unexpected %q in lobby", protocol.ErrProtocolViolation, env.Command))
		}
	}
}

// host opens a room, waits for an opponent, then runs the session loop on
// this goroutine.
func (h *Handler) host(ctx context.Context, name string, conn protocol.Conn, logger *zap.Logger) error {
	room := h.registry.CreateRoom(name, conn)
	start := time.Now()

	session, err := room.AwaitMatch(ctx)
	if err != nil {
		return fmt.Errorf("waiting in room %d: %w", room.ID, err)
	}
	logger.Info("opponent found",
		zap.Int("room_id", room.ID),
		zap.Duration("wait", time.Since(start)),
	)

	if err := session.Start(); err != nil {
		return err
	}
	return session.Run(ctx)
}

func (h *Handler) join(env protocol.Envelope, name string, conn protocol.Conn) (*game.Session, error) {
	id, ok := env.TargetRoom()
	if !ok {
		return nil, fmt.Errorf("invalid room target: %w", match.ErrRoomNotFound)
	}
	return h.registry.JoinRoom(id, name, conn)
}

// play parks the joiner until the creator's goroutine ends the session.
func (h *Handler) play(ctx context.Context, session *game.Session) error {
	select {
	case <-session.Done():
		return session.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fail reports protocol violations to the peer before the connection closes.
func (h *Handler) fail(conn protocol.Conn, err error) error {
	if errors.Is(err, protocol.ErrProtocolViolation) {
		h.logger.Warn("protocol violation",
			zap.String("remote_addr", conn.RemoteAddr()),
			zap.Error(err),
		)
		_ = protocol.SendError(conn, err)
	}
	return err
}

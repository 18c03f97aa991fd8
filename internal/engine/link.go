package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/minutelabs/minute-core/internal/bus"
	"github.com/minutelabs/minute-core/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Link is the core's side of the engine control channel: request/reply for
// start/stop commands, subscriptions for segment and state events.
type Link struct {
	conn    *nats.Conn
	timeout time.Duration
	log     *slog.Logger
}

func NewLink(busClient *bus.Client, commandTimeout time.Duration, log *slog.Logger) *Link {
	return &Link{
		conn:    busClient.Conn(),
		timeout: commandTimeout,
		log:     log.With(slog.String("component", "engine-link")),
	}
}

// Start asks the engine to begin capturing for a session.
func (l *Link) Start(ctx context.Context, sessionID, inputDeviceID string) error {
	cmd := protocol.StartCommand{SessionID: sessionID, InputDeviceID: inputDeviceID}
	reply, err := l.request(ctx, protocol.SubjectEngineStart, cmd)
	if err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("engine refused start: %s", reply.Error)
	}
	return nil
}

// Stop asks the engine to stop capturing for a session.
func (l *Link) Stop(ctx context.Context, sessionID string) error {
	cmd := protocol.StopCommand{SessionID: sessionID}
	reply, err := l.request(ctx, protocol.SubjectEngineStop, cmd)
	if err != nil {
		return err
	}
	if !reply.Success {
		return fmt.Errorf("engine refused stop: %s", reply.Error)
	}
	return nil
}

func (l *Link) request(ctx context.Context, subject string, payload any) (protocol.CommandReply, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return protocol.CommandReply{}, fmt.Errorf("marshal %s: %w", subject, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	msg, err := l.conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return protocol.CommandReply{}, fmt.Errorf("engine command %s: %w", subject, err)
	}

	var reply protocol.CommandReply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return protocol.CommandReply{}, fmt.Errorf("decode %s reply: %w", subject, err)
	}
	return reply, nil
}

// SubscribeSegments delivers engine segments in emission order. The
// returned unsubscribe func is safe to call more than once.
func (l *Link) SubscribeSegments(fn func(protocol.Segment)) (func(), error) {
	sub, err := l.conn.Subscribe(protocol.SubjectEngineSegment, func(msg *nats.Msg) {
		var seg protocol.Segment
		if err := json.Unmarshal(msg.Data, &seg); err != nil {
			l.log.Warn("failed to decode segment", slog.String("error", err.Error()))
			return
		}
		fn(seg)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe segments: %w", err)
	}
	return unsubscribeOnce(sub), nil
}

// SubscribeState delivers engine recording-state changes, including ones
// the core never requested.
func (l *Link) SubscribeState(fn func(protocol.StateChange)) (func(), error) {
	sub, err := l.conn.Subscribe(protocol.SubjectEngineState, func(msg *nats.Msg) {
		var sc protocol.StateChange
		if err := json.Unmarshal(msg.Data, &sc); err != nil {
			l.log.Warn("failed to decode state change", slog.String("error", err.Error()))
			return
		}
		fn(sc)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe state: %w", err)
	}
	return unsubscribeOnce(sub), nil
}

func unsubscribeOnce(sub *nats.Subscription) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			_ = sub.Drain()
		})
	}
}

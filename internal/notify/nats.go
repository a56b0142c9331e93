package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nats-io/nats.go"
)

// NATS publishes events on "<prefix>.<kind>[.<symbol>]" so other processes
// can render or record them.
type NATS struct {
	conn   *nats.Conn
	prefix string
}

func ConnectNATS(url, prefix string) (*NATS, error) {
	nc, err := nats.Connect(url,
		nats.Name("pricedash"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return NewNATS(nc, prefix), nil
}

func NewNATS(conn *nats.Conn, prefix string) *NATS {
	return &NATS{conn: conn, prefix: prefix}
}

func (n *NATS) Notify(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("failed to marshal event", "kind", ev.Kind, "error", err)
		return
	}
	subject := Subject(n.prefix, ev)
	if err := n.conn.Publish(subject, data); err != nil {
		slog.Warn("failed to publish event", "subject", subject, "error", err)
	}
}

// Close flushes pending publishes and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

// Subject builds the subject an event is published on. Symbols are upper
// cased and any character NATS treats specially becomes "_".
func Subject(prefix string, ev Event) string {
	parts := []string{}
	if prefix != "" {
		parts = append(parts, prefix)
	}
	parts = append(parts, string(ev.Kind))
	if ev.Symbol != "" {
		parts = append(parts, subjectToken(ev.Symbol))
	}
	return strings.Join(parts, ".")
}

func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, strings.ToUpper(s))
}

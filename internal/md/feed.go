package md

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"pricedash/internal/metrics"
)

type FeedState int32

const (
	Disconnected FeedState = iota
	Connected
	Subscribed
)

func (s FeedState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Subscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// MessageHandler receives the raw body of every price message, in arrival order.
type MessageHandler func(body []byte)

// GatewayFeed subscribes to the gateway's STOMP topic over a websocket and
// hands every MESSAGE body to a handler. It reconnects with capped exponential
// backoff until its context is cancelled.
type GatewayFeed struct {
	url        string
	topic      string
	dialer     websocket.Dialer
	minBackoff time.Duration
	maxBackoff time.Duration
	state      atomic.Int32
}

func NewGatewayFeed(wsURL, topic string) *GatewayFeed {
	return &GatewayFeed{
		url:   wsURL,
		topic: topic,
		dialer: websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		minBackoff: time.Second,
		maxBackoff: time.Minute,
	}
}

// FeedURL turns the gateway's HTTP base URL into the websocket URL of path.
func FeedURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse gateway url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported gateway scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

func (f *GatewayFeed) State() FeedState {
	return FeedState(f.state.Load())
}

func (f *GatewayFeed) setState(s FeedState) {
	f.state.Store(int32(s))
	if s == Subscribed {
		metrics.FeedConnected.Set(1)
	} else {
		metrics.FeedConnected.Set(0)
	}
}

func (f *GatewayFeed) Run(ctx context.Context, handler MessageHandler) error {
	backoff := f.minBackoff
	for {
		err := f.session(ctx, handler)
		if f.State() == Subscribed {
			backoff = f.minBackoff
		}
		f.setState(Disconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			slog.Error("price feed disconnected", "url", f.url, "error", err, "retry_in", backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
		if backoff > f.maxBackoff {
			backoff = f.maxBackoff
		}
	}
}

func (f *GatewayFeed) session(ctx context.Context, handler MessageHandler) error {
	conn, _, err := f.dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	connect := NewFrame(CmdConnect, "accept-version", "1.1,1.2", "heart-beat", "0,0")
	if err := conn.WriteMessage(websocket.TextMessage, connect.Encode()); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}
	if err := f.awaitConnected(conn); err != nil {
		return err
	}
	f.setState(Connected)

	subscribe := NewFrame(CmdSubscribe, "id", "sub-0", "destination", f.topic)
	if err := conn.WriteMessage(websocket.TextMessage, subscribe.Encode()); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	f.setState(Subscribed)
	slog.Info("price feed subscribed", "url", f.url, "topic", f.topic)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read feed: %w", err)
		}
		frame, err := DecodeFrame(data)
		if errors.Is(err, errEmptyFrame) {
			continue
		}
		if err != nil {
			slog.Warn("dropping undecodable stomp frame", "error", err)
			continue
		}
		switch frame.Command {
		case CmdMessage:
			handler(frame.Body)
		case CmdError:
			return fmt.Errorf("broker error: %s", frame.Headers["message"])
		}
	}
}

func (f *GatewayFeed) awaitConnected(conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("await connected: %w", err)
		}
		frame, err := DecodeFrame(data)
		if errors.Is(err, errEmptyFrame) {
			continue
		}
		if err != nil {
			return fmt.Errorf("await connected: %w", err)
		}
		switch frame.Command {
		case CmdConnected:
			return nil
		case CmdError:
			return fmt.Errorf("broker refused connect: %s", frame.Headers["message"])
		default:
			return fmt.Errorf("unexpected frame %s before CONNECTED", frame.Command)
		}
	}
}

// Package push keeps the live alert subscription. The server speaks
// Socket.IO over a websocket; frames are handled at the Engine.IO v4
// packet level, and plain {"event","data"} JSON frames are accepted too.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/reconcile"
)

// Engine.IO / Socket.IO packet prefixes.
const (
	packetOpen       = "0"
	packetClose      = "1"
	packetPing       = "2"
	packetPong       = "3"
	packetConnect    = "40"
	packetDisconnect = "41"
	packetEvent      = "42"
	packetConnectErr = "44"
)

// ErrServerDisconnect is returned when the server ends the session.
var ErrServerDisconnect = errors.New("push: server disconnected")

// Subscriber maintains the push subscription and reconnects on failure.
type Subscriber struct {
	url       string
	event     string
	token     string
	reconnect time.Duration

	dialer *websocket.Dialer
	logger *zap.Logger
	now    func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Subscriber.
type Option func(*Subscriber)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Subscriber) { s.logger = l }
}

// WithReconnectDelay overrides the delay between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(s *Subscriber) { s.reconnect = d }
}

// WithDialer replaces the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(s *Subscriber) { s.dialer = d }
}

// WithClock sets the ingest instant used for payloads without createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Subscriber) { s.now = now }
}

// New creates a subscriber for the push config section. token is sent as a
// bearer credential on the upgrade request.
func New(cfg config.PushConfig, token string, opts ...Option) (*Subscriber, error) {
	target, err := SocketURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	s := &Subscriber{
		url:       target,
		event:     cfg.Event,
		token:     token,
		reconnect: time.Duration(cfg.ReconnectSeconds) * time.Second,
		dialer:    websocket.DefaultDialer,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reconnect <= 0 {
		s.reconnect = 5 * time.Second
	}
	return s, nil
}

// URL returns the websocket endpoint the subscriber dials.
func (s *Subscriber) URL() string {
	return s.url
}

// SocketURL converts a server base URL into its websocket endpoint. A bare
// host gets the Socket.IO path and Engine.IO v4 query; an explicit path is
// kept as given.
func SocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Wrapf(err, "parsing push url %q", raw)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", errors.Newf("push url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return "", errors.Newf("push url %q: missing host", raw)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/socket.io/"
		q := u.Query()
		q.Set("EIO", "4")
		q.Set("transport", "websocket")
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Start runs the subscription in the background until ctx is cancelled or
// Stop is called. Calling Start on a running subscriber is a no-op.
func (s *Subscriber) Start(ctx context.Context, emit reconcile.Emit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.loop(ctx, emit, s.done)
}

// Stop ends the subscription and waits for the background goroutine. No
// event is emitted after Stop returns.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Subscriber) loop(ctx context.Context, emit reconcile.Emit, done chan struct{}) {
	defer close(done)

	for {
		err := s.session(ctx, emit)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("push session ended", zap.Error(err), zap.Duration("retry_in", s.reconnect))
		emit(reconcile.ConnectivityChanged{Connected: false, Err: err})

		t := time.NewTimer(s.reconnect)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

// session dials once and reads frames until the connection fails.
func (s *Subscriber) session(ctx context.Context, emit reconcile.Emit) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}
	conn, resp, err := s.dialer.DialContext(ctx, s.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return errors.Wrapf(err, "dialing %s", s.url)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("push connected", zap.String("url", s.url))
	emit(reconcile.ConnectivityChanged{Connected: true})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errors.Wrap(err, "reading push frame")
		}
		reply, err := s.handleFrame(data, emit)
		if err != nil {
			return err
		}
		if reply != "" {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return errors.Wrap(err, "writing push frame")
			}
		}
	}
}

// handleFrame interprets one text frame and returns the reply to send, if
// any.
func (s *Subscriber) handleFrame(data []byte, emit reconcile.Emit) (string, error) {
	frame := string(bytes.TrimSpace(data))
	switch {
	case frame == "":
		return "", nil
	case frame == packetPing:
		return packetPong, nil
	case strings.HasPrefix(frame, packetConnectErr):
		return "", errors.Newf("push: connect rejected: %s", frame[len(packetConnectErr):])
	case strings.HasPrefix(frame, packetDisconnect), frame == packetClose:
		return "", ErrServerDisconnect
	case strings.HasPrefix(frame, packetConnect):
		s.logger.Debug("push namespace connected")
		return "", nil
	case strings.HasPrefix(frame, packetEvent):
		name, payload, ok := parseEvent(frame[len(packetEvent):])
		if !ok {
			s.logger.Debug("unparseable push event", zap.String("frame", frame))
			return "", nil
		}
		s.deliver(name, payload, emit)
		return "", nil
	case strings.HasPrefix(frame, packetOpen):
		return packetConnect, nil
	case frame[0] == '{':
		var msg struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal([]byte(frame), &msg); err != nil || msg.Event == "" {
			s.logger.Debug("unparseable push frame", zap.String("frame", frame))
			return "", nil
		}
		s.deliver(msg.Event, msg.Data, emit)
		return "", nil
	}
	return "", nil
}

func (s *Subscriber) deliver(name string, payload []byte, emit reconcile.Emit) {
	if name != s.event {
		return
	}
	a, ok := alerts.DecodePush(payload, s.now())
	if !ok {
		emit(reconcile.IngestDropped{Source: alerts.SourcePush, Count: 1})
		return
	}
	emit(reconcile.PushAlertReceived{Alert: a})
}

// parseEvent splits a Socket.IO event body such as `["new-alert",{...}]`,
// optionally preceded by a namespace and an ack id, into the event name and
// its first argument.
func parseEvent(body string) (string, []byte, bool) {
	i := strings.IndexByte(body, '[')
	if i < 0 {
		return "", nil, false
	}
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(body[i:]), &args); err != nil || len(args) == 0 {
		return "", nil, false
	}
	var name string
	if err := json.Unmarshal(args[0], &name); err != nil {
		return "", nil, false
	}
	if len(args) < 2 {
		return name, nil, true
	}
	return name, args[1], true
}

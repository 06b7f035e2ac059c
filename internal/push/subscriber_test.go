package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixlim/alert-top/internal/alerts"
	"github.com/nixlim/alert-top/internal/config"
	"github.com/nixlim/alert-top/internal/reconcile"
)

type recorder struct {
	mu     sync.Mutex
	events []reconcile.Event
}

func (r *recorder) emit(ev reconcile.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []reconcile.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]reconcile.Event(nil), r.events...)
}

func (r *recorder) pushed() []alerts.Alert {
	var out []alerts.Alert
	for _, ev := range r.snapshot() {
		if p, ok := ev.(reconcile.PushAlertReceived); ok {
			out = append(out, p.Alert)
		}
	}
	return out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/socket.io/?EIO=4&transport=websocket"
}

func newTestSubscriber(t *testing.T, url string) *Subscriber {
	t.Helper()
	cfg := config.DefaultConfig().Push
	cfg.URL = url
	s, err := New(cfg, "secret", WithReconnectDelay(20*time.Millisecond))
	require.NoError(t, err)
	return s
}

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"http://localhost:4000", "ws://localhost:4000/socket.io/?EIO=4&transport=websocket", false},
		{"https://alerts.example.com/", "wss://alerts.example.com/socket.io/?EIO=4&transport=websocket", false},
		{"ws://host:9000/stream", "ws://host:9000/stream", false},
		{"ftp://host", "", true},
		{"http://", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SocketURL(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEvent(t *testing.T) {
	name, payload, ok := parseEvent(`["new-alert",{"id":"a"}]`)
	require.True(t, ok)
	assert.Equal(t, "new-alert", name)
	assert.JSONEq(t, `{"id":"a"}`, string(payload))

	name, _, ok = parseEvent(`/admin,12["other",1]`)
	require.True(t, ok)
	assert.Equal(t, "other", name)

	_, _, ok = parseEvent(`not json`)
	assert.False(t, ok)
	_, _, ok = parseEvent(`[]`)
	assert.False(t, ok)
}

func TestHandleFrame(t *testing.T) {
	s := newTestSubscriber(t, "http://localhost:4000")
	rec := &recorder{}

	tests := []struct {
		frame string
		reply string
		err   bool
	}{
		{`0{"sid":"abc","pingInterval":25000}`, "40", false},
		{"2", "3", false},
		{`40{"sid":"x"}`, "", false},
		{"41", "", true},
		{`44{"message":"unauthorized"}`, "", true},
		{"", "", false},
		{"garbage", "", false},
	}
	for _, tt := range tests {
		reply, err := s.handleFrame([]byte(tt.frame), rec.emit)
		assert.Equal(t, tt.reply, reply, "frame %q", tt.frame)
		assert.Equal(t, tt.err, err != nil, "frame %q", tt.frame)
	}
	assert.Empty(t, rec.snapshot())
}

func TestHandleFrame_Events(t *testing.T) {
	s := newTestSubscriber(t, "http://localhost:4000")
	rec := &recorder{}

	_, _ = s.handleFrame([]byte(`42["new-alert",{"_id":"a1","severity":"HIGH","title":"Port scan"}]`), rec.emit)
	_, _ = s.handleFrame([]byte(`42["other-event",{"id":"zzz"}]`), rec.emit)
	_, _ = s.handleFrame([]byte(`42["new-alert",{"title":"no id"}]`), rec.emit)
	_, _ = s.handleFrame([]byte(`{"event":"new-alert","data":{"id":"a2","severity":"low"}}`), rec.emit)

	evs := rec.snapshot()
	require.Len(t, evs, 3)

	first, ok := evs[0].(reconcile.PushAlertReceived)
	require.True(t, ok)
	assert.Equal(t, "a1", first.Alert.ID)
	assert.Equal(t, alerts.SeverityHigh, first.Alert.Severity)
	assert.Nil(t, first.Alert.Acknowledged)

	assert.Equal(t, reconcile.IngestDropped{Source: alerts.SourcePush, Count: 1}, evs[1])

	last, ok := evs[2].(reconcile.PushAlertReceived)
	require.True(t, ok)
	assert.Equal(t, "a2", last.Alert.ID)
}

func TestSubscriber_EndToEnd(t *testing.T) {
	var authHeader atomic.Value
	gotOpenReply := make(chan string, 1)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`0{"sid":"s1"}`))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		gotOpenReply <- string(msg)
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`40{"sid":"n1"}`))
		_ = conn.WriteMessage(websocket.TextMessage,
			[]byte(`42["new-alert",{"id":"live-1","severity":"critical","title":"Brute force"}]`))
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := newTestSubscriber(t, wsURL(srv))
	rec := &recorder{}
	s.Start(context.Background(), rec.emit)

	select {
	case reply := <-gotOpenReply:
		assert.Equal(t, "40", reply)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the namespace connect")
	}

	require.Eventually(t, func() bool { return len(rec.pushed()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "live-1", rec.pushed()[0].ID)
	assert.Equal(t, "Bearer secret", authHeader.Load())
	assert.Equal(t, reconcile.ConnectivityChanged{Connected: true}, rec.snapshot()[0])

	s.Stop()
	n := len(rec.snapshot())
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, rec.snapshot(), n, "no events after Stop returns")
}

func TestSubscriber_Reconnects(t *testing.T) {
	var conns atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns.Add(1)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("41"))
		conn.Close()
	}))
	defer srv.Close()

	s := newTestSubscriber(t, wsURL(srv))
	rec := &recorder{}
	s.Start(context.Background(), rec.emit)
	defer s.Stop()

	require.Eventually(t, func() bool { return conns.Load() >= 2 }, 2*time.Second, 10*time.Millisecond)

	var sawDown bool
	for _, ev := range rec.snapshot() {
		if c, ok := ev.(reconcile.ConnectivityChanged); ok && !c.Connected {
			sawDown = true
			assert.Error(t, c.Err)
		}
	}
	assert.True(t, sawDown)
}

func TestSubscriber_StopWithoutStart(t *testing.T) {
	s := newTestSubscriber(t, "http://localhost:1")
	s.Stop()
}

func TestSubscriber_StopWhileDialFails(t *testing.T) {
	s := newTestSubscriber(t, "http://127.0.0.1:1")
	rec := &recorder{}
	s.Start(context.Background(), rec.emit)

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	s.Stop()
	n := len(rec.snapshot())
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, rec.snapshot(), n)
}

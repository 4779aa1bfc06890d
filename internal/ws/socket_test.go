package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func wsBaseURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSocketDeliversParsedFrames(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	defer srv.Close()

	var mu sync.Mutex
	var frames []string
	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func(payload []byte) {
		mu.Lock()
		frames = append(frames, string(payload))
		mu.Unlock()
	})
	defer sock.Disconnect()

	sock.Connect()

	conn := <-conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"message"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing"}`)))

	eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, `{"type":"message"}`, frames[0])
	require.Equal(t, `{"type":"typing"}`, frames[1])
}

func TestSocketSkipsMalformedFrames(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	defer srv.Close()

	var mu sync.Mutex
	var frames []string
	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func(payload []byte) {
		mu.Lock()
		frames = append(frames, string(payload))
		mu.Unlock()
	})
	defer sock.Disconnect()

	sock.Connect()

	conn := <-conns
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{{{not json`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`)))

	eventually(t, 2*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(frames) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, `{"ok":true}`, frames[0])
}

func TestSocketAppendsTokenQueryParam(t *testing.T) {
	tokens := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/7", "secret token", func([]byte) {})
	defer sock.Disconnect()
	sock.Connect()

	select {
	case token := <-tokens:
		require.Equal(t, "secret token", token)
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the handshake")
	}
}

func TestConnectWithoutTokenIsNoOp(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "", func([]byte) {})
	sock.Connect()

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), hits.Load())
	require.Equal(t, StateClosed, sock.State())
}

func TestNormalCloseDoesNotReconnect(t *testing.T) {
	var upgrades atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrades.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		conn.Close()
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(5*time.Millisecond))
	defer sock.Disconnect()
	sock.Connect()

	eventually(t, 2*time.Second, func() bool { return upgrades.Load() == 1 })
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateClosed })

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), upgrades.Load())
}

func TestAbnormalCloseReconnectsAndCounterResets(t *testing.T) {
	var upgrades atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := upgrades.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		if n < 3 {
			// Drop the connection without a close frame.
			conn.Close()
			return
		}
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(5*time.Millisecond))
	defer sock.Disconnect()
	sock.Connect()

	eventually(t, 3*time.Second, func() bool { return upgrades.Load() == 3 })
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateOpen })
}

func TestReconnectCeiling(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Refuse the upgrade so no open ever succeeds.
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(time.Millisecond))
	sock.Connect()

	// Initial dial plus five retries, then the transport gives up.
	eventually(t, 3*time.Second, func() bool { return hits.Load() == 6 })
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateClosed })

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(6), hits.Load())
}

func TestReconnectBackoffGrowsLinearly(t *testing.T) {
	var mu sync.Mutex
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, time.Now())
		mu.Unlock()
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	const step = 60 * time.Millisecond
	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(step), WithMaxAttempts(3))
	sock.Connect()

	// Initial dial plus three retries.
	eventually(t, 5*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(hits) == 4
	})
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateClosed })

	mu.Lock()
	defer mu.Unlock()
	gaps := make([]time.Duration, 0, 3)
	for i := 1; i < len(hits); i++ {
		gaps = append(gaps, hits[i].Sub(hits[i-1]))
	}

	// Delay is step times the attempt number: step, 2*step, 3*step. A
	// constant schedule would flunk the lower bounds from the second
	// attempt on.
	for i, gap := range gaps {
		want := time.Duration(i+1) * step
		require.GreaterOrEqual(t, gap, want, "attempt %d", i+1)
	}
	require.Greater(t, gaps[1], gaps[0])
	require.Greater(t, gaps[2], gaps[1])
}

func TestHandshakeTimeoutFollowsBackoffPath(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		// Accept the TCP connection but never answer the upgrade.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithHandshakeTimeout(30*time.Millisecond),
		WithBackoffStep(10*time.Millisecond),
		WithMaxAttempts(1))
	sock.Connect()

	// The stalled handshake times out, retries once, then gives up.
	eventually(t, 2*time.Second, func() bool { return hits.Load() == 2 })
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateClosed })
}

func TestDisconnectThenConnectKeepsSingleConnection(t *testing.T) {
	var upgrades atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrades.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(5*time.Millisecond))
	sock.Connect()
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateOpen })

	// The first session's read loop may only notice its dead connection
	// after the second session is already up; it must not dial again.
	sock.Disconnect()
	sock.Connect()
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateOpen })

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(2), upgrades.Load())
	require.Equal(t, StateOpen, sock.State())
	sock.Disconnect()
}

func TestDisconnectCancelsPendingReconnect(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {},
		WithBackoffStep(200*time.Millisecond))
	sock.Connect()

	eventually(t, 2*time.Second, func() bool { return hits.Load() == 1 })
	sock.Disconnect()

	// Well past the scheduled backoff; a stray timer would redial.
	time.Sleep(500 * time.Millisecond)
	require.Equal(t, int32(1), hits.Load())
}

func TestSendWhileClosedIsDropped(t *testing.T) {
	sock := New("group", "ws://127.0.0.1:1", "/chat/ws/1", "token", func([]byte) {})

	// Must not panic or block.
	sock.Send(map[string]string{"type": "message"})
	sock.SendText("ping")
}

func TestDisconnectIsIdempotent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		_ = conn
	}))
	defer srv.Close()

	sock := New("group", wsBaseURL(srv), "/chat/ws/1", "token", func([]byte) {})
	sock.Connect()
	eventually(t, 2*time.Second, func() bool { return sock.State() == StateOpen })

	sock.Disconnect()
	sock.Disconnect()
	require.Equal(t, StateClosed, sock.State())
}

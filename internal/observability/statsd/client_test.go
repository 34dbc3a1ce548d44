package statsd

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// udpSink captures datagrams sent to a loopback UDP listener.
type udpSink struct {
	conn  net.PacketConn
	lines chan string
}

func newUDPSink(t *testing.T) *udpSink {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	s := &udpSink{conn: conn, lines: make(chan string, 16)}
	go func() {
		buf := make([]byte, 1024)
		for {
			n, _, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			s.lines <- string(buf[:n])
		}
	}()
	return s
}

func (s *udpSink) addr() string { return s.conn.LocalAddr().String() }

func (s *udpSink) next(t *testing.T) string {
	t.Helper()
	select {
	case line := <-s.lines:
		return line
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a statsd datagram")
		return ""
	}
}

func newTestClient(t *testing.T, sink *udpSink, prefix string, globalTags map[string]string) *Client {
	t.Helper()
	c, err := NewClient(Config{
		Enabled:    true,
		Address:    sink.addr(),
		Prefix:     prefix,
		GlobalTags: globalTags,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient_Count(t *testing.T) {
	sink := newUDPSink(t)
	c := newTestClient(t, sink, "sportsync", nil)

	c.Count("jobs.runs", 3, map[string]string{"job": "fixtures_sync"})

	assert.Equal(t, "sportsync.jobs.runs:3|c|#job:fixtures_sync", sink.next(t))
}

func TestClient_Gauge(t *testing.T) {
	sink := newUDPSink(t)
	c := newTestClient(t, sink, "sportsync", nil)

	c.Gauge("scheduler.entries", 5, nil)

	assert.Equal(t, "sportsync.scheduler.entries:5|g", sink.next(t))
}

func TestClient_Timing(t *testing.T) {
	sink := newUDPSink(t)
	c := newTestClient(t, sink, "", nil)

	c.Timing("jobs.duration", 1500*time.Millisecond, nil)

	assert.Equal(t, "jobs.duration:1500|ms", sink.next(t))
}

func TestClient_TagsMergedAndSorted(t *testing.T) {
	sink := newUDPSink(t)
	c := newTestClient(t, sink, "sportsync", map[string]string{"env": "test", "job": "global"})

	c.Count("jobs.runs", 1, map[string]string{"job": "odds_sync", "status": "success"})

	assert.Equal(t, "sportsync.jobs.runs:1|c|#env:test,job:odds_sync,status:success", sink.next(t))
}

func TestClient_NameSanitized(t *testing.T) {
	sink := newUDPSink(t)
	c := newTestClient(t, sink, "sportsync", nil)

	c.Count(" jobs..runs/total ", 1, nil)

	assert.Equal(t, "sportsync.jobs.runs_total:1|c", sink.next(t))
}

func TestClient_DisabledIsNoOp(t *testing.T) {
	c, err := NewClient(Config{Enabled: false, Address: "127.0.0.1:1"})
	require.NoError(t, err)

	assert.False(t, c.Enabled())
	c.Count("jobs.runs", 1, nil)
	c.Gauge("jobs.open", 1, nil)
	require.NoError(t, c.Close())
}

func TestClient_EmptyAddressDisables(t *testing.T) {
	c, err := NewClient(Config{Enabled: true, Address: "   "})
	require.NoError(t, err)
	assert.False(t, c.Enabled())
}

func TestClient_NilReceiverIsSafe(t *testing.T) {
	var c *Client
	assert.False(t, c.Enabled())
	c.Count("jobs.runs", 1, nil)
	require.NoError(t, c.Close())
}

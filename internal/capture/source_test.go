package capture

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestJSONLSourceSkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"diff":"first","url":"u","capturedAt":"2026-03-01T10:00:00Z"}`,
		`not json`,
		``,
		`{"diff":"second","url":"u","capturedAt":"2026-03-01T10:00:01Z"}`,
	}, "\n")

	var got []string
	src := NewJSONLSource(strings.NewReader(input), nil)
	err := src.Run(context.Background(), func(_ context.Context, rec Record) {
		got = append(got, *rec.Diff)
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("unexpected records: %v", got)
	}
}

// #region fake-redis
// flakyRedis speaks just enough RESP2 to create a consumer group, then drops
// the connection on every XREADGROUP.
type flakyRedis struct {
	ln    net.Listener
	reads atomic.Int32
}

func newFlakyRedis(t *testing.T) *flakyRedis {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	f := &flakyRedis{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go f.serve()
	return f
}

func (f *flakyRedis) serve() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}
		go f.handle(conn)
	}
}

func (f *flakyRedis) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	for {
		args, err := readCommand(r)
		if err != nil {
			return
		}
		switch strings.ToUpper(args[0]) {
		case "XREADGROUP":
			f.reads.Add(1)
			return
		case "XACK":
			fmt.Fprint(conn, ":1\r\n")
		default:
			fmt.Fprint(conn, "+OK\r\n")
		}
	}
}

func readCommand(r *bufio.Reader) ([]string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "*")))
	if err != nil || n < 1 {
		return nil, fmt.Errorf("bad array header %q", line)
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if _, err := r.ReadString('\n'); err != nil { // $len
			return nil, err
		}
		arg, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		args = append(args, strings.TrimSuffix(arg, "\r\n"))
	}
	return args, nil
}

// #endregion fake-redis

func TestRedisSourceSurvivesReadErrors(t *testing.T) {
	srv := newFlakyRedis(t)
	client := redis.NewClient(&redis.Options{
		Addr:            srv.ln.Addr().String(),
		Protocol:        2,
		DisableIdentity: true,
		MaxRetries:      -1,
	})
	defer client.Close()

	cfg := DefaultRedisSourceConfig()
	cfg.Block = 100 * time.Millisecond
	cfg.RetryBackoff = 5 * time.Millisecond
	cfg.MaxBackoff = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src, err := NewRedisSource(ctx, client, cfg, nil)
	if err != nil {
		t.Fatalf("NewRedisSource: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(context.Context, Record) {})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for srv.reads.Load() < 3 {
		select {
		case err := <-done:
			t.Fatalf("Run returned after %d reads: %v", srv.reads.Load(), err)
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected repeated reads, got %d", srv.reads.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRedisSourceBackoffCaps(t *testing.T) {
	src := &RedisSource{config: RedisSourceConfig{RetryBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second, time.Second}
	for i, w := range want {
		if got := src.backoff(i + 1); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

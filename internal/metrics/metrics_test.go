package metrics

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().String()
	_ = l.Close()
	return addr
}

func TestProvider_BuildInfoAndCustomCollector(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "1.2.3", Revision: "abc", Branch: "main", BuildDate: "2026-01-01"}})

	renders := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_panels_rendered_total", Help: "smoke"})
	p.Register(renders)
	renders.Add(3)

	if got := testutil.ToFloat64(renders); got != 3 {
		t.Fatalf("counter=%v want 3", got)
	}
	n, err := testutil.GatherAndCount(p.reg, "panelserver_build_info", "test_panels_rendered_total")
	if err != nil || n != 2 {
		t.Fatalf("gathered=%d err=%v want 2", n, err)
	}
}

func TestProvider_ServeExposesRegistry(t *testing.T) {
	addr := freeAddr(t)
	p := Init(Config{Addr: addr, Path: "/prom"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx, slog.New(slog.NewTextHandler(io.Discard, nil))) }()

	var body string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/prom")
		if err == nil {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			body = string(b)
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !strings.Contains(body, "go_goroutines") || !strings.Contains(body, `panelserver_build_info{`) {
		t.Fatalf("unexpected payload:\n%s", body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

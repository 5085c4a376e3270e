package metrics_test

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/wippyai/go-rados"
	"github.com/wippyai/go-rados/metrics"
	"github.com/wippyai/go-rados/native/sim"
	"github.com/wippyai/go-rados/resource"
)

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func assertSeries(t *testing.T, body string, want ...string) {
	t.Helper()
	for _, line := range want {
		if !strings.Contains(body, line+"\n") {
			t.Errorf("missing series %q in:\n%s", line, body)
		}
	}
}

func TestCollector_ZeroSeries(t *testing.T) {
	c, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	body := scrape(t, c)
	for _, k := range resource.Kinds() {
		assertSeries(t, body,
			`rados_resources_live{kind="`+k.String()+`"} 0`,
			`rados_resources_created_total{kind="`+k.String()+`"} 0`,
		)
	}
}

func TestCollector_Events(t *testing.T) {
	c, err := metrics.NewCollector(metrics.WithNamespace("test"))
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}

	c.OnResourceEvent(resource.Event{Type: resource.EventCreated, Kind: resource.KindCluster})
	c.OnResourceEvent(resource.Event{Type: resource.EventCreated, Kind: resource.KindBuffer})
	c.OnResourceEvent(resource.Event{Type: resource.EventCreated, Kind: resource.KindBuffer})
	c.OnResourceEvent(resource.Event{Type: resource.EventReleased, Kind: resource.KindBuffer, Collected: true})
	c.OnResourceEvent(resource.Event{Type: resource.EventReleaseFailed, Kind: resource.KindCluster})

	assertSeries(t, scrape(t, c),
		`test_resources_live{kind="cluster"} 0`,
		`test_resources_live{kind="buffer"} 1`,
		`test_resources_created_total{kind="buffer"} 2`,
		`test_resources_released_total{kind="buffer"} 1`,
		`test_resources_released_total{kind="cluster"} 1`,
		`test_resource_release_failures_total{kind="cluster"} 1`,
		`test_resources_collected_total{kind="buffer"} 1`,
	)
}

func TestCollector_ObservesEnvironment(t *testing.T) {
	c, err := metrics.NewCollector()
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	s, err := sim.New()
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	defer s.Close()

	r := rados.New(s, rados.WithObserver(c))
	conn, err := r.NewConn()
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}
	if err := conn.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := conn.CreatePool("data"); err != nil {
		t.Fatalf("CreatePool: %v", err)
	}
	io, err := conn.OpenIOContext("data")
	if err != nil {
		t.Fatalf("OpenIOContext: %v", err)
	}

	assertSeries(t, scrape(t, c),
		`rados_resources_live{kind="cluster"} 1`,
		`rados_resources_live{kind="ioctx"} 1`,
	)

	io.Close()
	r.Close()

	assertSeries(t, scrape(t, c),
		`rados_resources_live{kind="cluster"} 0`,
		`rados_resources_live{kind="ioctx"} 0`,
		`rados_resources_released_total{kind="cluster"} 1`,
		`rados_resources_released_total{kind="ioctx"} 1`,
	)
}

func TestCollector_ServeListener(t *testing.T) {
	c, err := metrics.NewCollector(metrics.WithRuntimeMetrics())
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.ServeListener(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/metrics")
	if err != nil {
		cancel()
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "go_goroutines") {
		t.Errorf("runtime metrics missing from scrape")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeListener returned %v after cancel", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("ServeListener did not return after cancel")
	}
}

package metrics

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestCounter_SameKeyShared(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("test_total", "test counter", "")
	b := c.Counter("test_total", "test counter", "")
	if a != b {
		t.Fatal("same name must return the same counter")
	}
	a.Inc()
	a.Add(2)
	if b.Value() != 3 {
		t.Fatalf("expected 3, got %d", b.Value())
	}
}

func TestCounter_LabelsSeparateSeries(t *testing.T) {
	c := NewMetricsCollector()
	ok := c.Counter("test_total", "test counter", `outcome="completed"`)
	bad := c.Counter("test_total", "test counter", `outcome="failed"`)
	if ok == bad {
		t.Fatal("different labels must be separate series")
	}
	ok.Inc()
	if bad.Value() != 0 {
		t.Fatal("series must not share values")
	}
}

func TestGauge_IncDecSet(t *testing.T) {
	c := NewMetricsCollector()
	g := c.Gauge("test_gauge", "test gauge", "")
	g.Inc()
	g.Inc()
	g.Dec()
	if g.Value() != 1 {
		t.Fatalf("expected 1, got %d", g.Value())
	}
	g.Set(42)
	if g.Value() != 42 {
		t.Fatalf("expected 42, got %d", g.Value())
	}
}

func TestRender_Format(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("app_requests_total", "Requests served", "").Add(7)
	c.Counter("app_results_total", "Results by kind", `kind="ok"`).Inc()
	c.Gauge("app_inflight", "In flight", "").Set(2)

	out := c.Render()
	for _, want := range []string{
		"# HELP fetchbot_uptime_seconds",
		"# TYPE app_requests_total counter",
		"app_requests_total 7",
		`app_results_total{kind="ok"} 1`,
		"# TYPE app_inflight gauge",
		"app_inflight 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("render output missing %q:\n%s", want, out)
		}
	}
}

func TestHandler(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("handler_test_total", "handler test", "").Inc()

	rec := httptest.NewRecorder()
	c.Handler()(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "handler_test_total 1") {
		t.Fatalf("body missing metric:\n%s", rec.Body.String())
	}
}

func TestCounter_ConcurrentInc(t *testing.T) {
	c := NewMetricsCollector()
	ctr := c.Counter("race_total", "race test", "")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ctr.Inc()
			}
		}()
	}
	wg.Wait()
	if ctr.Value() != 1000 {
		t.Fatalf("expected 1000, got %d", ctr.Value())
	}
}

package metrics

import (
	"strings"
	"testing"
)

func TestCounterAndGauge(t *testing.T) {
	c := NewMetricsCollector()

	ctr := c.Counter("test_total", "test counter")
	ctr.Inc()
	ctr.Add(2)
	if ctr.Value() != 3 {
		t.Errorf("counter = %d, want 3", ctr.Value())
	}
	if c.Counter("test_total", "test counter") != ctr {
		t.Error("same name should return the same counter")
	}

	g := c.Gauge("test_gauge", "test gauge")
	g.Set(42)
	if g.Value() != 42 {
		t.Errorf("gauge = %d, want 42", g.Value())
	}
	g.Set(7)
	if g.Value() != 7 {
		t.Errorf("gauge = %d, want 7", g.Value())
	}
}

func TestRender(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("demo_total", "demo help").Inc()
	c.Gauge("demo_gauge", "gauge help").Set(5)

	out := c.Render()
	for _, want := range []string{
		"# HELP demo_total demo help",
		"# TYPE demo_total counter",
		"demo_total 1",
		"# TYPE demo_gauge gauge",
		"demo_gauge 5",
		"coldchat_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render output missing %q", want)
		}
	}
}

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequestCounts(t *testing.T) {
	m := New()
	m.ObserveRequest("CryptoQuote", "OK", 100*time.Millisecond)
	m.ObserveRequest("CryptoQuote", "OK", 200*time.Millisecond)
	m.ObserveRequest("CryptoQuote", "RATE_LIMITED", 50*time.Millisecond)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("CryptoQuote", "OK")); got != 2 {
		t.Errorf("OK requests: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("CryptoQuote", "RATE_LIMITED")); got != 1 {
		t.Errorf("RATE_LIMITED requests: got %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("x", "y", time.Second)
	m.ObserveLimiterWait(time.Second)
	m.ObserveToken("OK")
	m.RankingDegraded()
	m.SetBreakerOpen("cmc", true)
	m.MarkRun(time.Now())
	if err := m.WriteTextfile("/nonexistent/metrics.prom"); err != nil {
		t.Errorf("nil WriteTextfile: %v", err)
	}
	if m.Registry() != nil {
		t.Error("nil Registry should be nil")
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RankingDegraded()
	m.SetBreakerOpen("coinmarketcap", true)

	path := filepath.Join(t.TempDir(), "cryptoreport.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"cryptoreport_ranking_degraded_total 1",
		`cryptoreport_circuit_breaker_open{name="coinmarketcap"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("textfile missing %q", want)
		}
	}
}

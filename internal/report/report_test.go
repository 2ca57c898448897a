package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/seenimoa/cryptoreport/internal/ranking"
	"github.com/seenimoa/cryptoreport/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func ptr[T any](v T) *T { return &v }

var testNow = time.Date(2026, 3, 9, 14, 30, 15, 500, time.UTC)

func sampleTracked() []models.TokenRecord {
	return []models.TokenRecord{
		{
			Symbol: "BTC", Group: "top", Status: models.StatusOK,
			Quote: &models.TokenQuote{
				Symbol: "BTC", Name: "Bitcoin", Rank: ptr(1), PriceUSD: 65000.12,
				Change7d: ptr(5.0), Change30d: ptr(10.0),
			},
		},
		{
			Symbol: "ETH", Group: "top", Status: models.StatusOK,
			Quote: &models.TokenQuote{
				Symbol: "ETH", Name: "Ethereum", Rank: ptr(2), PriceUSD: 3100.5,
				Change7d: ptr(-3.0),
			},
		},
		{Symbol: "XYZ", Group: "meme", Status: models.StatusNotFound, Error: "symbol not found"},
	}
}

func sampleResult() ranking.Result {
	return ranking.Result{
		Horizon: models.Horizon7d,
		Best:    []models.RankingEntry{{Symbol: "BTC", Rank: 1, ChangePct: 5, Horizon: models.Horizon7d}},
		Worst:   []models.RankingEntry{{Symbol: "ETH", Rank: 2, ChangePct: -3, Horizon: models.Horizon7d}},
	}
}

func sampleReport(t *testing.T) *models.Report {
	t.Helper()
	rep, err := Assemble(sampleTracked(), sampleResult(), models.AllHorizons(), testNow)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return rep
}

// ════════════════════════════════════════════════════════════════════
// Assemble
// ════════════════════════════════════════════════════════════════════

func TestAssemble(t *testing.T) {
	rep := sampleReport(t)
	if len(rep.TrackedTokens) != 3 {
		t.Errorf("TrackedTokens: got %d, want 3", len(rep.TrackedTokens))
	}
	if !rep.GeneratedAt.Equal(testNow.Truncate(time.Second)) {
		t.Errorf("GeneratedAt: got %v", rep.GeneratedAt)
	}
	if rep.RankedBy != models.Horizon7d {
		t.Errorf("RankedBy: got %s", rep.RankedBy)
	}
	if len(rep.Top5Best) != 1 || rep.Top5Best[0].Symbol != "BTC" {
		t.Errorf("Top5Best: got %+v", rep.Top5Best)
	}
	if len(rep.Top5Worst) != 1 || rep.Top5Worst[0].Symbol != "ETH" {
		t.Errorf("Top5Worst: got %+v", rep.Top5Worst)
	}
	counts := rep.StatusCounts()
	if counts[models.StatusOK] != 2 || counts[models.StatusNotFound] != 1 {
		t.Errorf("StatusCounts: got %v", counts)
	}
}

func TestAssembleEmptyTracked(t *testing.T) {
	_, err := Assemble(nil, sampleResult(), models.AllHorizons(), testNow)
	if !errors.Is(err, ErrNoTrackedTokens) {
		t.Fatalf("expected ErrNoTrackedTokens, got %v", err)
	}
	if !errors.Is(err, models.ErrConfig) {
		t.Error("ErrNoTrackedTokens should be a config error")
	}
}

func TestAssembleDoesNotAlias(t *testing.T) {
	tracked := sampleTracked()
	result := sampleResult()
	rep, err := Assemble(tracked, result, models.AllHorizons(), testNow)
	if err != nil {
		t.Fatal(err)
	}

	*tracked[0].Quote.Change7d = 999
	tracked[1].Symbol = "MUTATED"
	result.Best[0].Symbol = "MUTATED"

	if got := *rep.TrackedTokens[0].Quote.Change7d; got != 5 {
		t.Errorf("report change mutated through input: %v", got)
	}
	if rep.TrackedTokens[1].Symbol != "ETH" || rep.Top5Best[0].Symbol != "BTC" {
		t.Error("report aliased input slices")
	}
}

func TestAssembleDegradedRanking(t *testing.T) {
	rep, err := Assemble(sampleTracked(), ranking.Result{Horizon: models.Horizon7d}, models.AllHorizons(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if rep.Top5Best == nil || rep.Top5Worst == nil {
		t.Error("empty rankings should be empty slices, not nil")
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"top5_best": []`) {
		t.Errorf("expected empty top5_best array in JSON:\n%s", buf.String())
	}
}

// ════════════════════════════════════════════════════════════════════
// JSON
// ════════════════════════════════════════════════════════════════════

func TestWriteJSONSchema(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport(t)); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"generated_at", "tracked_tokens", "top5_best", "top5_worst", "horizons"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}

	var generated string
	json.Unmarshal(doc["generated_at"], &generated)
	if generated != "2026-03-09T14:30:15Z" {
		t.Errorf("generated_at: got %q", generated)
	}

	var tokens []map[string]any
	if err := json.Unmarshal(doc["tracked_tokens"], &tokens); err != nil {
		t.Fatal(err)
	}
	btc := tokens[0]
	if btc["symbol"] != "BTC" || btc["rank"] != float64(1) || btc["price_usd"] != 65000.12 {
		t.Errorf("BTC row: %v", btc)
	}
	// Absent horizons are explicit nulls, never zero.
	if v, ok := btc["pct_change_90d"]; !ok || v != nil {
		t.Errorf("pct_change_90d: got %v (present=%v), want null", v, ok)
	}
	xyz := tokens[2]
	if xyz["status"] != "NOT_FOUND" || xyz["price_usd"] != nil || xyz["rank"] != nil {
		t.Errorf("XYZ row: %v", xyz)
	}

	var best []map[string]any
	json.Unmarshal(doc["top5_best"], &best)
	if len(best) != 1 || best[0]["symbol"] != "BTC" || best[0]["change_pct"] != float64(5) || best[0]["horizon"] != "7d" {
		t.Errorf("top5_best: %v", best)
	}
}

func TestJSONRoundTripKeepsAbsence(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleReport(t)); err != nil {
		t.Fatal(err)
	}
	var back models.Report
	if err := json.Unmarshal(buf.Bytes(), &back); err != nil {
		t.Fatalf("decode: %v", err)
	}
	eth := back.TrackedTokens[1]
	if eth.Quote == nil || eth.Quote.Change30d != nil || eth.Quote.Change7d == nil {
		t.Errorf("ETH quote after round trip: %+v", eth.Quote)
	}
	if back.TrackedTokens[2].Quote != nil {
		t.Error("NOT_FOUND record gained a quote")
	}
}

// ════════════════════════════════════════════════════════════════════
// CSV
// ════════════════════════════════════════════════════════════════════

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("invalid CSV: %v", err)
	}
	return rows
}

func TestWriteTokensCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTokensCSV(&buf, sampleReport(t)); err != nil {
		t.Fatalf("WriteTokensCSV: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	if len(rows) != 4 {
		t.Fatalf("rows: got %d, want 4 (header + 3)", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(TokenColumns, ",") {
		t.Errorf("header: got %v", rows[0])
	}

	btc := rows[1]
	want := []string{"2026-03-09T14:30:15Z", "7d|30d|90d|1y", "7d", "top", "BTC", "Bitcoin", "OK", "",
		"1", "65000.12", "5", "10", "", ""}
	if strings.Join(btc, ",") != strings.Join(want, ",") {
		t.Errorf("BTC row:\n got %v\nwant %v", btc, want)
	}

	xyz := rows[3]
	if xyz[6] != "NOT_FOUND" || xyz[8] != "" || xyz[9] != "" {
		t.Errorf("XYZ row: %v", xyz)
	}
}

func TestWritePerformanceCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WritePerformanceCSV(&buf, sampleReport(t)); err != nil {
		t.Fatalf("WritePerformanceCSV: %v", err)
	}
	rows := readCSV(t, buf.Bytes())
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	if got := strings.Join(rows[1], ","); got != "2026-03-09T14:30:15Z,best,1,BTC,1,5,7d" {
		t.Errorf("best row: %s", got)
	}
	if got := strings.Join(rows[2], ","); got != "2026-03-09T14:30:15Z,worst,1,ETH,2,-3,7d" {
		t.Errorf("worst row: %s", got)
	}
}

func TestSave(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	files, err := Save(dir, sampleReport(t))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Base(files.JSON) != "crypto_report_20260309.json" {
		t.Errorf("JSON name: %s", files.JSON)
	}
	if filepath.Base(files.PerformanceCSV) != "crypto_performance_20260309.csv" {
		t.Errorf("performance name: %s", files.PerformanceCSV)
	}
	for _, p := range []string{files.JSON, files.CSV, files.PerformanceCSV, files.Chart} {
		info, err := os.Stat(p)
		if err != nil {
			t.Errorf("stat %s: %v", p, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", p)
		}
	}
}

// ════════════════════════════════════════════════════════════════════
// Text
// ════════════════════════════════════════════════════════════════════

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteText(&buf, sampleReport(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"BTC", "NOT_FOUND", "Best performers (7d", "1. BTC", "-3.00%", "n/a"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
	// The universe size is configurable and not part of the report.
	if strings.Contains(out, "top 100") {
		t.Errorf("heading should not name a fixed universe size:\n%s", out)
	}
}

// ════════════════════════════════════════════════════════════════════
// Chart
// ════════════════════════════════════════════════════════════════════

func TestWriteChart(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteChart(&buf, sampleReport(t)); err != nil {
		t.Fatal(err)
	}
	svg := buf.String()
	if !strings.HasPrefix(svg, "<svg") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatalf("not an SVG document: %.60s", svg)
	}
	for _, want := range []string{">BTC<", ">ETH<", "+5.00%", "-3.00%", "#ef5350"} {
		if !strings.Contains(svg, want) {
			t.Errorf("chart missing %q", want)
		}
	}
}

func TestHorizontalBarChartEmpty(t *testing.T) {
	svg := HorizontalBarChart(nil, ChartConfig{})
	if !strings.Contains(svg, "No ranking available") {
		t.Errorf("empty chart: %s", svg)
	}
}

func TestEscapeXML(t *testing.T) {
	if got := escapeXML(`A&B <"x">`); got != "A&amp;B &lt;&quot;x&quot;&gt;" {
		t.Errorf("escapeXML: got %q", got)
	}
}

package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/cryptoreport/pkg/models"
)

// Files lists the paths written by Save.
type Files struct {
	JSON           string `json:"json"`
	CSV            string `json:"csv"`
	PerformanceCSV string `json:"performance_csv"`
	Chart          string `json:"chart"`
}

// TokenColumns is the header of the tracked-tokens CSV.
var TokenColumns = []string{
	"generated_at", "horizons", "ranked_by", "group", "symbol", "name", "status", "error",
	"rank", "price_usd", "pct_change_7d", "pct_change_30d", "pct_change_90d", "pct_change_1y",
}

// PerformanceColumns is the header of the performance CSV.
var PerformanceColumns = []string{
	"generated_at", "type", "position", "symbol", "rank", "change_pct", "horizon",
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, r *models.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// WriteTokensCSV writes one row per tracked token. Absent values are
// empty cells.
func WriteTokensCSV(w io.Writer, r *models.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TokenColumns); err != nil {
		return err
	}

	generated := r.GeneratedAt.Format(time.RFC3339)
	horizons := joinHorizons(r.Horizons)
	for _, rec := range r.TrackedTokens {
		row := []string{generated, horizons, string(r.RankedBy), rec.Group, rec.Symbol, "", string(rec.Status), rec.Error,
			"", "", "", "", "", ""}
		if q := rec.Quote; q != nil {
			row[5] = q.Name
			row[8] = formatInt(q.Rank)
			row[9] = formatFloat(q.PriceUSD)
			row[10] = formatOptional(q.Change7d)
			row[11] = formatOptional(q.Change30d)
			row[12] = formatOptional(q.Change90d)
			row[13] = formatOptional(q.Change1y)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WritePerformanceCSV writes the best then worst lists with a type column.
func WritePerformanceCSV(w io.Writer, r *models.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(PerformanceColumns); err != nil {
		return err
	}

	generated := r.GeneratedAt.Format(time.RFC3339)
	write := func(kind string, entries []models.RankingEntry) error {
		for i, e := range entries {
			row := []string{
				generated, kind, strconv.Itoa(i + 1), e.Symbol,
				strconv.Itoa(e.Rank), formatFloat(e.ChangePct), string(e.Horizon),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	}
	if err := write("best", r.Top5Best); err != nil {
		return err
	}
	if err := write("worst", r.Top5Worst); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// FileNames returns the dated file names for a report generated at t.
func FileNames(t time.Time) Files {
	stamp := t.UTC().Format("20060102")
	return Files{
		JSON:           "crypto_report_" + stamp + ".json",
		CSV:            "crypto_report_" + stamp + ".csv",
		PerformanceCSV: "crypto_performance_" + stamp + ".csv",
		Chart:          "crypto_performance_" + stamp + ".svg",
	}
}

// Save writes every output into dir, creating it if needed.
func Save(dir string, r *models.Report) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("create output dir: %w", err)
	}

	names := FileNames(r.GeneratedAt)
	files := Files{
		JSON:           filepath.Join(dir, names.JSON),
		CSV:            filepath.Join(dir, names.CSV),
		PerformanceCSV: filepath.Join(dir, names.PerformanceCSV),
		Chart:          filepath.Join(dir, names.Chart),
	}

	outputs := []struct {
		path  string
		write func(io.Writer, *models.Report) error
	}{
		{files.JSON, WriteJSON},
		{files.CSV, WriteTokensCSV},
		{files.PerformanceCSV, WritePerformanceCSV},
		{files.Chart, WriteChart},
	}
	for _, out := range outputs {
		if err := writeFile(out.path, r, out.write); err != nil {
			return Files{}, err
		}
	}
	return files, nil
}

func writeFile(path string, r *models.Report, write func(io.Writer, *models.Report) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func joinHorizons(hs []models.Horizon) string {
	parts := make([]string, len(hs))
	for i, h := range hs {
		parts[i] = string(h)
	}
	return strings.Join(parts, "|")
}

func formatFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

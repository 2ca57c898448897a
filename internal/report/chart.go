package report

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// ════════════════════════════════════════════════════════════════════
// SVG Performance Chart
// ════════════════════════════════════════════════════════════════════

// ChartConfig holds rendering parameters for SVG charts.
type ChartConfig struct {
	Width        int    // SVG width in pixels (default: 800)
	Height       int    // SVG height in pixels (default: 400)
	MarginTop    int    // top margin (default: 40)
	MarginRight  int    // right margin (default: 80)
	MarginBottom int    // bottom margin (default: 30)
	MarginLeft   int    // left margin, holds the symbol labels (default: 90)
	BgColor      string // background color (default: "#ffffff")
	TextColor    string // label color (default: "#333333")
	GainColor    string // bar color for positive changes
	LossColor    string // bar color for negative changes
	FontSize     int    // label font size (default: 11)
	Title        string // chart title
}

// DefaultChartConfig returns sensible defaults for chart rendering.
func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Width:        800,
		Height:       400,
		MarginTop:    40,
		MarginRight:  80,
		MarginBottom: 30,
		MarginLeft:   90,
		BgColor:      "#ffffff",
		TextColor:    "#333333",
		GainColor:    "#4caf50",
		LossColor:    "#ef5350",
		FontSize:     11,
	}
}

// plotArea returns the usable drawing area dimensions.
func (c ChartConfig) plotArea() (x, y, w, h int) {
	return c.MarginLeft, c.MarginTop,
		c.Width - c.MarginLeft - c.MarginRight,
		c.Height - c.MarginTop - c.MarginBottom
}

// BarItem represents a single bar in a horizontal bar chart.
type BarItem struct {
	Label string
	Value float64
}

// WriteChart renders the best and worst performers as one SVG bar chart,
// best first, so the split between the two lists stays visible.
func WriteChart(w io.Writer, r *models.Report) error {
	cfg := DefaultChartConfig()
	cfg.Title = fmt.Sprintf("Top performers by %s change (%s)", r.RankedBy, r.GeneratedAt.Format("2006-01-02"))

	items := make([]BarItem, 0, len(r.Top5Best)+len(r.Top5Worst))
	for _, e := range r.Top5Best {
		items = append(items, BarItem{Label: e.Symbol, Value: e.ChangePct})
	}
	for _, e := range r.Top5Worst {
		items = append(items, BarItem{Label: e.Symbol, Value: e.ChangePct})
	}

	_, err := io.WriteString(w, HorizontalBarChart(items, cfg))
	return err
}

// HorizontalBarChart generates an SVG horizontal bar chart around a zero
// line. Values are percentages.
func HorizontalBarChart(items []BarItem, cfg ChartConfig) string {
	if cfg.Width == 0 {
		title := cfg.Title
		cfg = DefaultChartConfig()
		cfg.Title = title
	}
	if len(items) == 0 {
		return emptySVG(cfg, "No ranking available")
	}

	px, py, pw, ph := cfg.plotArea()

	minVal, maxVal := 0.0, 0.0
	for _, item := range items {
		minVal = math.Min(minVal, item.Value)
		maxVal = math.Max(maxVal, item.Value)
	}
	valRange := maxVal - minVal
	if valRange < 0.001 {
		valRange = 1
	}
	zeroX := float64(px) + (-minVal/valRange)*float64(pw)

	barH := math.Min(float64(ph)/float64(len(items))*0.7, 30)
	gap := (float64(ph) - barH*float64(len(items))) / float64(len(items)+1)

	var sb strings.Builder
	sb.WriteString(svgHeader(cfg))
	fmt.Fprintf(&sb, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`,
		cfg.Width, cfg.Height, cfg.BgColor)
	fmt.Fprintf(&sb, `<text x="%d" y="20" font-size="14" font-weight="bold" fill="%s" text-anchor="middle">%s</text>`,
		cfg.Width/2, cfg.TextColor, escapeXML(cfg.Title))
	fmt.Fprintf(&sb, `<line x1="%.1f" y1="%d" x2="%.1f" y2="%d" stroke="#999" stroke-width="1"/>`,
		zeroX, py, zeroX, py+ph)

	for i, item := range items {
		by := float64(py) + gap + float64(i)*(barH+gap)
		bw := math.Abs(item.Value) / valRange * float64(pw)
		bx, color := zeroX, cfg.GainColor
		if item.Value < 0 {
			bx, color = zeroX-bw, cfg.LossColor
		}

		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" rx="2"/>`,
			bx, by, bw, barH, color)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" font-size="%d" fill="%s" text-anchor="end">%s</text>`,
			px-5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(item.Label))
		fmt.Fprintf(&sb, `<text x="%.1f" y="%.1f" font-size="%d" fill="%s">%s</text>`,
			bx+bw+5, by+barH/2+4, cfg.FontSize, cfg.TextColor, escapeXML(utils.FormatPct(item.Value)))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

func svgHeader(cfg ChartConfig) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" font-family="sans-serif">`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height)
}

func emptySVG(cfg ChartConfig, msg string) string {
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d"><rect width="%d" height="%d" fill="#f5f5f5"/><text x="%d" y="%d" text-anchor="middle" fill="#999" font-size="14">%s</text></svg>`,
		cfg.Width, cfg.Height, cfg.Width, cfg.Height, cfg.Width/2, cfg.Height/2, escapeXML(msg))
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, `"`, "&quot;")
	return s
}

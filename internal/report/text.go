package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/seenimoa/cryptoreport/pkg/models"
	"github.com/seenimoa/cryptoreport/pkg/utils"
)

// WriteText renders a human-readable summary for the terminal.
func WriteText(w io.Writer, r *models.Report) error {
	var sb strings.Builder

	sb.WriteString("═══════════════════════════════════════\n")
	fmt.Fprintf(&sb, "  Crypto Report — %s\n", r.GeneratedAt.Format(time.RFC1123))
	sb.WriteString("═══════════════════════════════════════\n\n")

	tw := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "GROUP\tSYMBOL\tRANK\tPRICE (USD)\t7D %\t30D %\t90D %\t1Y %\tSTATUS\t")
	for _, rec := range r.TrackedTokens {
		if q := rec.Quote; q != nil {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				rec.Group, rec.Symbol, formatInt(q.Rank), utils.FormatUSD(q.PriceUSD),
				pct(q.Change7d), pct(q.Change30d), pct(q.Change90d), pct(q.Change1y), rec.Status)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\t-\t-\t%s\t\n", rec.Group, rec.Symbol, rec.Status)
	}
	tw.Flush()

	writeRanking(&sb, "Best performers", r.RankedBy, r.Top5Best)
	writeRanking(&sb, "Worst performers", r.RankedBy, r.Top5Worst)

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRanking(sb *strings.Builder, title string, h models.Horizon, entries []models.RankingEntry) {
	fmt.Fprintf(sb, "\n  %s (%s change, top tokens by market cap):\n", title, h)
	if len(entries) == 0 {
		sb.WriteString("    (none)\n")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(sb, "    %d. %-8s #%-4d %s\n", i+1, e.Symbol, e.Rank, utils.FormatPct(e.ChangePct))
	}
}

func pct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f", *v)
}

package usecase

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/jmerrifield20/riskposture/internal/report"
	"github.com/jmerrifield20/riskposture/internal/threat"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Render writes an analysis result in the requested format.
func Render(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "", FormatText:
		return renderText(w, v)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(w io.Writer, v any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	switch r := v.(type) {
	case *report.ScoreReport:
		writeScored(tw, r.Tenant)
	case *report.BrandReport:
		writeBrands(tw, r.Brands)
	case *report.PostureReport:
		writeScored(tw, r.Tenant)
		fmt.Fprintln(tw)
		writeBrands(tw, r.Brands)
	case *report.SeverityReport:
		fmt.Fprintf(tw, "Strategy:\t%s\nIncidents:\t%d\n", r.Strategy, r.Total)
		fmt.Fprintf(tw, "Critical/High/Medium/Low:\t%d/%d/%d/%d\n\n",
			r.ByPriority[threat.PriorityCritical], r.ByPriority[threat.PriorityHigh],
			r.ByPriority[threat.PriorityMedium], r.ByPriority[threat.PriorityLow])
		fmt.Fprintln(tw, "KEY\tTYPE\tD\tR\tE\tA\tD\tTOTAL\tPRIORITY")
		for _, s := range r.Results {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%g\t%s\n",
				s.Key, s.Type, s.Damage, s.Reproducibility, s.Exploitability,
				s.AffectedUsers, s.Discoverability, s.Total, s.Priority)
		}
	case *report.CategoryReport:
		fmt.Fprintf(tw, "Incidents:\t%d\n\n", r.Total)
		fmt.Fprintln(tw, "CODE\tCATEGORY\tCOUNT\tSHARE\tTYPES")
		for _, c := range r.Categories {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%s\n", c.Code, c.Name, c.Count, c.Percentage, strings.Join(c.Types, ", "))
		}
	case *report.OriginReport:
		fmt.Fprintf(tw, "Origin:\t%s\nIncidents:\t%d\n\n", r.Origin.Description, r.Total)
		fmt.Fprintln(tw, "TYPE\tCOUNT")
		for _, t := range r.ByType {
			fmt.Fprintf(tw, "%s\t%d\n", t.Type, t.Count)
		}
		fmt.Fprintln(tw, "\nKEY\tTYPE\tOPENED")
		for _, t := range r.Tickets {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Key, t.Type, t.OpenedAt.Format("2006-01-02"))
		}
	case *report.CredentialReport:
		fmt.Fprintf(tw, "Credentials:\t%d\n", r.Total)
		fmt.Fprintf(tw, "Plain / hashed / unknown:\t%d / %d / %d\n", r.Plain, r.Hashed, r.UnknownPassword)
		fmt.Fprintf(tw, "Stealer log / combolist / other:\t%d / %d / %d\n", r.StealerLog, r.Combolist, r.OtherFormat)
	case *report.VolumeReport:
		fmt.Fprintf(tw, "Tickets:\t%d incidents, weighted %d\n", r.TicketTotal, r.TicketScore)
		fmt.Fprintf(tw, "Statistics:\t%d incidents, weighted %d\n", r.StatsTotal, r.StatsScore)
		fmt.Fprintf(tw, "Consistent:\t%t\n\n", r.Consistent)
		fmt.Fprintln(tw, "TYPE\tWEIGHT\tTICKETS\tSTATS")
		for _, row := range r.Rows {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n", row.Type, row.Weight, row.TicketCount, row.StatsCount)
		}
	case *report.AssetReport:
		fmt.Fprintln(tw, "BRAND\tWEBSITE\tDOMAINS")
		for _, b := range r.Brands {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Name, b.OfficialWebsite, strings.Join(r.Domains[b.Name], ", "))
		}
		if len(r.Unmatched) > 0 {
			fmt.Fprintf(tw, "(unmatched)\t\t%s\n", strings.Join(r.Unmatched, ", "))
		}
	default:
		tw.Flush()
		return Render(w, FormatJSON, v)
	}
	return tw.Flush()
}

func writeScored(w io.Writer, s report.Scored) {
	fmt.Fprintf(w, "Scope:\t%s (%s)\n", s.Scope, s.Kind)
	fmt.Fprintf(w, "Score:\t%d / 1000  grade %s  %s\n", s.FinalScore, s.Grade, s.Status)
	if s.Trend != nil {
		fmt.Fprintf(w, "Trend:\t%+d since %s (was %d, %s)\n",
			s.Trend.Delta, s.Trend.PreviousAt.Format("2006-01-02"), s.Trend.PreviousScore, s.Trend.PreviousGrade)
	}
	fmt.Fprintf(w, "Incidents:\t%d (weighted %d)\n", s.TotalIncidents, s.WeightedScore)
	fmt.Fprintf(w, "Benchmark:\tratio %.2f against median %d %s\n", s.BenchmarkRatio, s.SectorMedian, s.MarketSegment)
	fmt.Fprintf(w, "Stealers:\t%d (factor %.1f)\n", s.StealerCount, s.StealerFactor)
	fmt.Fprintf(w, "Efficiency:\t%.1f%% (slow factor %.2f)\n", s.EfficiencyPct, s.SlowFactor)
	fmt.Fprintf(w, "Complaints:\t%d (factor %.1f)\n", s.Complaints, s.ReputationalFactor)
	fmt.Fprintf(w, "Base x penalty:\t%.1f x %.3f\n", s.Base, s.PenaltyMultiplier)
	for _, t := range s.TopThreats {
		fmt.Fprintf(w, "Top threat:\t%s (%d x %d = %d)\n", t.Type, t.Count, t.Weight, t.Subscore)
	}
	if len(s.Defaulted) > 0 {
		fmt.Fprintf(w, "Defaulted:\t%s\n", strings.Join(s.Defaulted, ", "))
	}
}

func writeBrands(w io.Writer, brands []report.Scored) {
	fmt.Fprintln(w, "BRAND\tSCORE\tGRADE\tINCIDENTS\tTREND")
	for _, b := range brands {
		trend := "-"
		if b.Trend != nil {
			trend = fmt.Sprintf("%+d", b.Trend.Delta)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%s\n", b.Scope, b.FinalScore, b.Grade, b.TotalIncidents, trend)
	}
}

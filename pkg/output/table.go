package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/telekom/exception-subscriptions/pkg/subscription"
)

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)
}

func WriteRulesTable(w io.Writer, rules []subscription.Rule) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "#\tPATTERN\tEMAILS")
	for i, r := range rules {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Pattern, strings.Join(r.Emails, ","))
	}
	_ = tw.Flush()
}

// WriteMatchTable lists the patterns matching culprit and who would be notified.
func WriteMatchTable(w io.Writer, culprit string, patterns, recipients []string) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintf(tw, "CULPRIT\t%s\n", culprit)
	_, _ = fmt.Fprintf(tw, "PATTERNS\t%s\n", orDash(strings.Join(patterns, ", ")))
	_, _ = fmt.Fprintf(tw, "RECIPIENTS\t%s\n", orDash(strings.Join(recipients, ", ")))
	_ = tw.Flush()
}

func WriteGateTable(w io.Writer, isNew bool, timesSeen int64, d subscription.Decision) {
	tw := newTabWriter(w)
	_, _ = fmt.Fprintln(tw, "NEW\tTIMES_SEEN\tNOTIFY\tREASON")
	_, _ = fmt.Fprintf(tw, "%t\t%d\t%t\t%s\n", isNew, timesSeen, d.Notify, d.Reason)
	_ = tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

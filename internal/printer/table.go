package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/progress"
)

var radarLabels = []string{"Academic", "Language", "Research", "Internship", "School"}

// TablePrinter prints analysis information in a human readable format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintTask prints the analysis task status.
func (t *TablePrinter) PrintTask(task model.AnalysisTask) error {
	fmt.Fprintf(t.writer, "Task:       %s\n", task.ID)
	fmt.Fprintf(t.writer, "Status:     %s\n", task.Status)

	if p, ok := task.ReportedProgress(); ok {
		fmt.Fprintf(t.writer, "Progress:   %d%%\n", p)
	}
	if task.Message != "" {
		fmt.Fprintf(t.writer, "Message:    %s\n", task.Message)
	}
	if task.EstimatedTime != "" {
		fmt.Fprintf(t.writer, "Estimated:  %s\n", task.EstimatedTime)
	}
	if task.Error != "" {
		fmt.Fprintf(t.writer, "Error:      %s\n", task.Error)
	}
	if task.Result != nil {
		fmt.Fprintln(t.writer)
		return t.PrintReport(*task.Result)
	}

	return nil
}

// PrintReport prints the analysis report sections.
func (t *TablePrinter) PrintReport(report model.AnalysisReport) error {
	c := report.Competitiveness
	fmt.Fprintln(t.writer, "== Competitiveness ==")
	fmt.Fprintf(t.writer, "Summary:    %s\n", c.Summary)
	fmt.Fprintf(t.writer, "Strengths:  %s\n", c.Strengths)
	fmt.Fprintf(t.writer, "Weaknesses: %s\n", c.Weaknesses)

	if len(report.RadarScores) > 0 {
		fmt.Fprintln(t.writer, "\n== Scores ==")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		for i, s := range report.RadarScores {
			label := fmt.Sprintf("Score %d", i+1)
			if i < len(radarLabels) {
				label = radarLabels[i]
			}
			fmt.Fprintf(tw, "%s\t%.0f\n", label, s)
		}
		tw.Flush()
	}

	if recs := report.SchoolRecommendations.Recommendations; len(recs) > 0 {
		fmt.Fprintln(t.writer, "\n== School recommendations ==")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "UNIVERSITY\tPROGRAM\tCASES\tREASON")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.University, r.Program, len(r.SupportingCases), r.Reason)
		}
		tw.Flush()
		if s := report.SchoolRecommendations.AnalysisSummary; s != "" {
			fmt.Fprintf(t.writer, "%s\n", s)
		}
	}

	if len(report.SimilarCases) > 0 {
		fmt.Fprintln(t.writer, "\n== Similar cases ==")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CASE\tUNIVERSITY\tPROGRAM\tGPA\tLANGUAGE")
		for _, sc := range report.SimilarCases {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", sc.CaseID, sc.AdmittedUniversity, sc.AdmittedProgram, sc.GPA, sc.LanguageScore)
		}
		tw.Flush()
	}

	if bi := report.BackgroundImprovement; bi != nil && len(bi.ActionPlan) > 0 {
		fmt.Fprintln(t.writer, "\n== Action plan ==")
		tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TIMEFRAME\tACTION\tGOAL")
		for _, a := range bi.ActionPlan {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.Timeframe, a.Action, a.Goal)
		}
		tw.Flush()
		if bi.StrategySummary != "" {
			fmt.Fprintf(t.writer, "%s\n", bi.StrategySummary)
		}
	}

	if report.Degraded {
		fmt.Fprintln(t.writer, "\nWarning: the report is partial.")
		for section, reason := range report.PartialFailures {
			fmt.Fprintf(t.writer, "  %s: %s\n", section, reason)
		}
	}

	return nil
}

// PrintProgress prints a single progress line.
func (t *TablePrinter) PrintProgress(snap progress.Snapshot) error {
	line := fmt.Sprintf("[%6.2f%%] %s", snap.Percentage, snap.StepTitle)
	if n := len(snap.Steps); n > 0 {
		line = fmt.Sprintf("%s (%d/%d)", line, snap.CurrentStep+1, n)
	}
	if snap.EstimatedTime != "" {
		line = fmt.Sprintf("%s, %s remaining", line, snap.EstimatedTime)
	}
	fmt.Fprintln(t.writer, line)
	return nil
}

// PrintError prints a classified error with its recovery actions.
func (t *TablePrinter) PrintError(ufe errclass.UserFacingError) error {
	fmt.Fprintf(t.writer, "%s: %s\n", ufe.Message.Title, ufe.Message.Description)
	if ufe.Message.Suggestion != "" {
		fmt.Fprintf(t.writer, "Suggestion: %s\n", ufe.Message.Suggestion)
	}

	retryable := "no"
	if ufe.Info.Retryable {
		retryable = "yes"
	}
	fmt.Fprintf(t.writer, "Code:       %s (retryable: %s)\n", ufe.Info.Code, retryable)
	fmt.Fprintf(t.writer, "Detail:     %s\n", ufe.Info.Message)

	others := make([]string, 0, len(ufe.Secondary))
	for _, a := range ufe.Secondary {
		others = append(others, string(a))
	}
	fmt.Fprintf(t.writer, "Action:     %s (other options: %s)\n", ufe.Action, strings.Join(others, ", "))

	return nil
}

// PrintAuthState prints the session information.
func (t *TablePrinter) PrintAuthState(st model.AuthState) error {
	if st.Token == "" {
		fmt.Fprintln(t.writer, "Not logged in.")
		return nil
	}

	authenticated := "yes"
	if !st.IsAuthenticated {
		authenticated = "no"
	}
	fmt.Fprintf(t.writer, "Authenticated: %s\n", authenticated)

	if st.Subject != "" {
		fmt.Fprintf(t.writer, "Subject:       %s\n", st.Subject)
	}

	now := time.Now()
	switch {
	case st.ExpiresAt == nil:
		fmt.Fprintln(t.writer, "Expires:       never")
	case st.ExpiresAt.After(now):
		fmt.Fprintf(t.writer, "Expires:       %s (%s)\n", FormatTimestamp(*st.ExpiresAt), RelativeTime(*st.ExpiresAt, now))
	default:
		fmt.Fprintf(t.writer, "Expired:       %s (%s)\n", FormatTimestamp(*st.ExpiresAt), RelativeTime(*st.ExpiresAt, now))
	}

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

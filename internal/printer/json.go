package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/progress"
)

// JSONPrinter prints analysis information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

// progressOutput is a single progress line, the step list is left out.
type progressOutput struct {
	Percentage       float64 `json:"percentage"`
	Step             int     `json:"step"`
	Steps            int     `json:"steps"`
	StepTitle        string  `json:"step_title"`
	EstimatedTime    string  `json:"estimated_time,omitempty"`
	ElapsedSeconds   float64 `json:"elapsed_seconds"`
	RemainingSeconds float64 `json:"remaining_seconds"`
	Completed        bool    `json:"completed"`
}

type errorOutput struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Retryable   bool     `json:"retryable"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Suggestion  string   `json:"suggestion,omitempty"`
	Action      string   `json:"action"`
	Secondary   []string `json:"secondary_actions"`
	Timestamp   string   `json:"timestamp"`
}

type authOutput struct {
	Authenticated bool       `json:"authenticated"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintTask prints the task as the service returns it.
func (j *JSONPrinter) PrintTask(task model.AnalysisTask) error {
	return j.encode(task, true)
}

// PrintReport prints the report as the service returns it.
func (j *JSONPrinter) PrintReport(report model.AnalysisReport) error {
	return j.encode(report, true)
}

// PrintProgress prints one progress object per line.
func (j *JSONPrinter) PrintProgress(snap progress.Snapshot) error {
	return j.encode(progressOutput{
		Percentage:       snap.Percentage,
		Step:             snap.CurrentStep + 1,
		Steps:            len(snap.Steps),
		StepTitle:        snap.StepTitle,
		EstimatedTime:    snap.EstimatedTime,
		ElapsedSeconds:   snap.Elapsed.Seconds(),
		RemainingSeconds: snap.EstimatedRemaining.Seconds(),
		Completed:        snap.IsCompleted,
	}, false)
}

// PrintError prints a classified error.
func (j *JSONPrinter) PrintError(ufe errclass.UserFacingError) error {
	secondary := make([]string, 0, len(ufe.Secondary))
	for _, a := range ufe.Secondary {
		secondary = append(secondary, string(a))
	}

	return j.encode(errorOutput{
		Code:        string(ufe.Info.Code),
		Message:     ufe.Info.Message,
		Retryable:   ufe.Info.Retryable,
		Title:       ufe.Message.Title,
		Description: ufe.Message.Description,
		Suggestion:  ufe.Message.Suggestion,
		Action:      string(ufe.Action),
		Secondary:   secondary,
		Timestamp:   ufe.Info.Timestamp.UTC().Format(time.RFC3339),
	}, true)
}

// PrintAuthState prints the session information without the token.
func (j *JSONPrinter) PrintAuthState(st model.AuthState) error {
	out := authOutput{
		Authenticated: st.IsAuthenticated,
		Subject:       st.Subject,
	}
	if st.ExpiresAt != nil {
		utcTime := st.ExpiresAt.UTC()
		out.ExpiresAt = &utcTime
	}

	return j.encode(out, true)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg}, true)
}

func (j *JSONPrinter) encode(v any, indent bool) error {
	enc := json.NewEncoder(j.writer)
	if indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

package printer

import (
	"io"

	"github.com/slok/jobwatch/internal/errclass"
	"github.com/slok/jobwatch/internal/model"
	"github.com/slok/jobwatch/internal/progress"
)

// Printer knows how to print analysis information in different formats.
type Printer interface {
	PrintTask(task model.AnalysisTask) error
	PrintReport(report model.AnalysisReport) error
	PrintProgress(snap progress.Snapshot) error
	PrintError(ufe errclass.UserFacingError) error
	PrintAuthState(st model.AuthState) error
	PrintMessage(msg string) error
}

// New returns the printer for a format, table is used for unknown formats.
func New(format string, w io.Writer) Printer {
	if format == FormatJSON {
		return NewJSONPrinter(w)
	}
	return NewTablePrinter(w)
}

const (
	FormatTable = "table"
	FormatJSON  = "json"
)

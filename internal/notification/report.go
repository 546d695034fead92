package notification

import (
	"context"
	"fmt"
	"time"
)

// ImportReport is the operator-facing summary of one pipeline run.
type ImportReport struct {
	ImportID  uint
	Imported  int64
	Skipped   int
	Ambiguous int
	Purged    int64
	Pruned    int
	Duration  time.Duration
	Err       error
}

// SendImportReport notifies operators about a finished run. Failures produce
// a clearly distinct message from successes.
func SendImportReport(ctx context.Context, provider Provider, report *ImportReport) error {
	if provider == nil {
		return nil
	}

	var msg *Message
	if report.Err != nil {
		msg = &Message{
			Title: "Observation import FAILED",
			Body: fmt.Sprintf(
				"The import run aborted after %s and was rolled back.\nError: %v",
				report.Duration.Round(time.Second), report.Err),
		}
	} else {
		msg = &Message{
			Title: fmt.Sprintf("Observation import #%d completed", report.ImportID),
			Body: fmt.Sprintf(
				"Imported %d observation(s), skipped %d row(s), %d ambiguous identitie(s).\n"+
					"Purged %d observation(s) from previous batches, pruned %d empty dataset(s).\n"+
					"Duration: %s.",
				report.Imported, report.Skipped, report.Ambiguous,
				report.Purged, report.Pruned,
				report.Duration.Round(time.Second)),
		}
	}
	return provider.Send(ctx, msg)
}

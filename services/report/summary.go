package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/frizwan636-dotcom/attendancepro/core"
)

// Unavailable replaces the summary whenever the summarizer cannot produce one.
const Unavailable = "AI summary unavailable."

// Summarizer writes a free-text summary of a table for a period, eg. "March 2024".
type Summarizer interface {
	Summarize(ctx context.Context, periodLabel string, t Table) (string, error)
}

// Summarize never fails: a missing summarizer, an error or an empty answer all degrade to Unavailable.
func Summarize(ctx context.Context, s Summarizer, logger core.Logger, periodLabel string, t Table) string {
	if s == nil {
		return Unavailable
	}
	text, err := s.Summarize(ctx, periodLabel, t)
	if err != nil {
		err = core.NewExternalServiceError("summarizer", err)
		if logger != nil {
			logger.Warn(fmt.Sprintf("summarizing %q: %v", t.Title, err), err)
		}
		return Unavailable
	}
	if text = strings.TrimSpace(text); text == "" {
		return Unavailable
	}
	return text
}

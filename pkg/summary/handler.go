package summary

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/queues"
	"github.com/ismaeeldev/nexa-server/pkg/workers"
)

// MeetingStore stores the produced summary.
type MeetingStore interface {
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error
}

// Fetcher downloads transcripts.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// NewHandler builds the worker handler for summary jobs: fetch the
// transcript, summarize it, store the result. Error sentinels steer the
// pool's retry decision: dependency failures retry, everything else
// dead-letters.
func NewHandler(store MeetingStore, fetcher Fetcher, summarizer Summarizer, logger logging.Logger) workers.JobHandler {
	log := logger.With(logging.F("component", "summary_handler"))

	return func(ctx context.Context, job *queues.SummaryJob) error {
		meetingID, err := uuid.Parse(job.MeetingID)
		if err != nil {
			return fmt.Errorf("job carries invalid meeting id %q: %w", job.MeetingID, nxerrors.ErrValidation)
		}
		if job.TranscriptURL == "" {
			return fmt.Errorf("job carries no transcript url: %w", nxerrors.ErrValidation)
		}

		transcript, err := fetcher.Fetch(ctx, job.TranscriptURL)
		if err != nil {
			return fmt.Errorf("failed to fetch transcript for meeting %s: %w", meetingID, err)
		}

		text, err := summarizer.Summarize(ctx, transcript)
		if err != nil {
			return fmt.Errorf("failed to summarize meeting %s: %w", meetingID, err)
		}

		if err := store.SetSummary(ctx, meetingID, text); err != nil {
			return fmt.Errorf("failed to store summary for meeting %s: %w", meetingID, err)
		}

		log.Info("Meeting summarized", logging.F("meeting_id", meetingID.String()))
		return nil
	}
}

package summary

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/queues"
)

// ==================== Transcript flattening ====================

func TestFlattenTranscript(t *testing.T) {
	raw := strings.Join([]string{
		`{"speaker_id":"alice","text":"hello everyone"}`,
		``,
		`{"speaker_id":"bot","text":"hi alice"}`,
		`not json at all`,
		`{"speaker_id":"alice","text":""}`,
	}, "\n")

	got, err := flattenTranscript(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "alice: hello everyone\nbot: hi alice\n", got)
}

func TestTranscriptFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"speaker_id":"alice","text":"hello"}`)
	}))
	defer srv.Close()

	got, err := NewTranscriptFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "alice: hello\n", got)
}

func TestTranscriptFetcherServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewTranscriptFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, nxerrors.IsDependency(err))
}

// ==================== Summarizer ====================

func TestOpenAISummarizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"content":"They agreed to ship on Friday."}}]}`))
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	got, err := s.Summarize(context.Background(), "alice: ship friday?\nbob: yes")
	require.NoError(t, err)
	assert.Equal(t, "They agreed to ship on Friday.", got)
}

func TestOpenAISummarizerRequiresKey(t *testing.T) {
	s := NewOpenAISummarizer(OpenAIConfig{})
	_, err := s.Summarize(context.Background(), "transcript")
	assert.True(t, nxerrors.IsDependency(err))
}

func TestOpenAISummarizerRejectsEmptyTranscript(t *testing.T) {
	s := NewOpenAISummarizer(OpenAIConfig{APIKey: "sk-test"})
	_, err := s.Summarize(context.Background(), "")
	assert.True(t, nxerrors.IsValidation(err))
}

func TestOpenAISummarizerUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s := NewOpenAISummarizer(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL})
	_, err := s.Summarize(context.Background(), "transcript")
	assert.True(t, nxerrors.IsDependency(err))
}

// ==================== Job handler ====================

type fakeStore struct {
	summaries map[uuid.UUID]string
	err       error
}

func (s *fakeStore) SetSummary(_ context.Context, id uuid.UUID, text string) error {
	if s.err != nil {
		return s.err
	}
	if s.summaries == nil {
		s.summaries = make(map[uuid.UUID]string)
	}
	s.summaries[id] = text
	return nil
}

type fakeFetcher struct {
	transcript string
	err        error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (string, error) {
	return f.transcript, f.err
}

type fakeSummarizer struct {
	summary string
	err     error
}

func (s *fakeSummarizer) Summarize(_ context.Context, _ string) (string, error) {
	return s.summary, s.err
}

func TestHandlerStoresSummary(t *testing.T) {
	store := &fakeStore{}
	meetingID := uuid.New()

	handler := NewHandler(store,
		&fakeFetcher{transcript: "alice: hi"},
		&fakeSummarizer{summary: "Short greeting."},
		logging.NewNopLogger())

	err := handler(context.Background(), &queues.SummaryJob{
		MeetingID:     meetingID.String(),
		TranscriptURL: "https://cdn/t.jsonl",
	})
	require.NoError(t, err)
	assert.Equal(t, "Short greeting.", store.summaries[meetingID])
}

func TestHandlerRejectsBadJob(t *testing.T) {
	handler := NewHandler(&fakeStore{}, &fakeFetcher{}, &fakeSummarizer{}, logging.NewNopLogger())

	err := handler(context.Background(), &queues.SummaryJob{MeetingID: "not-a-uuid"})
	assert.True(t, nxerrors.IsValidation(err))

	err = handler(context.Background(), &queues.SummaryJob{MeetingID: uuid.NewString()})
	assert.True(t, nxerrors.IsValidation(err))
}

func TestHandlerPropagatesFetchFailureAsRetryable(t *testing.T) {
	handler := NewHandler(&fakeStore{},
		&fakeFetcher{err: fmt.Errorf("cdn down: %w", nxerrors.ErrDependency)},
		&fakeSummarizer{},
		logging.NewNopLogger())

	err := handler(context.Background(), &queues.SummaryJob{
		MeetingID:     uuid.NewString(),
		TranscriptURL: "https://cdn/t.jsonl",
	})
	require.Error(t, err)
	assert.True(t, nxerrors.IsRetryable(nxerrors.OutcomeForError(err)))
}

func TestHandlerPropagatesMissingMeeting(t *testing.T) {
	handler := NewHandler(&fakeStore{err: nxerrors.ErrNotFound},
		&fakeFetcher{transcript: "alice: hi"},
		&fakeSummarizer{summary: "s"},
		logging.NewNopLogger())

	err := handler(context.Background(), &queues.SummaryJob{
		MeetingID:     uuid.NewString(),
		TranscriptURL: "https://cdn/t.jsonl",
	})
	assert.True(t, nxerrors.IsNotFound(err))
}

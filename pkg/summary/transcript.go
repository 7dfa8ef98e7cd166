package summary

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
)

// transcriptLine is one utterance in the platform's JSONL transcript format.
type transcriptLine struct {
	SpeakerID string `json:"speaker_id"`
	Text      string `json:"text"`
}

// TranscriptFetcher downloads a transcript and flattens it to dialog text.
type TranscriptFetcher struct {
	http *http.Client
}

// NewTranscriptFetcher creates a fetcher with a bounded HTTP client.
func NewTranscriptFetcher() *TranscriptFetcher {
	return &TranscriptFetcher{
		http: &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch downloads the transcript at url and renders it as
// "speaker: text" lines. Lines that are not valid JSON are skipped; the
// platform occasionally pads transcripts with blank lines.
func (f *TranscriptFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build transcript request: %w", err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcript fetch failed: %w: %v", nxerrors.ErrDependency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("transcript fetch returned %d: %w", resp.StatusCode, nxerrors.ErrDependency)
	}

	return flattenTranscript(resp.Body)
}

func flattenTranscript(r io.Reader) (string, error) {
	var b strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry transcriptLine
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry.Text == "" {
			continue
		}

		if entry.SpeakerID != "" {
			b.WriteString(entry.SpeakerID)
			b.WriteString(": ")
		}
		b.WriteString(entry.Text)
		b.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read transcript: %w", err)
	}

	return b.String(), nil
}

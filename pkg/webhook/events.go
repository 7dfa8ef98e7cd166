// Package webhook is the meeting lifecycle orchestrator: the single authority
// that moves meetings through their status machine, driven by verified call
// platform events. Every transition is a conditional update keyed on the
// expected predecessor status, so at-least-once webhook delivery (replays and
// out-of-order events) is rejected harmlessly instead of corrupting state.
package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
)

// EventType discriminates the closed set of platform events the orchestrator
// understands. Unknown types are acknowledged and ignored.
type EventType string

const (
	EventSessionStarted     EventType = "call.session_started"
	EventSessionEnded       EventType = "call.session_ended"
	EventParticipantLeft    EventType = "call.session_participant_left"
	EventTranscriptionReady EventType = "call.transcription_ready"
	EventRecordingReady     EventType = "call.recording_ready"
)

// callCustom is the metadata stamped onto the call at creation time.
type callCustom struct {
	MeetingID string `json:"meetingId"`
}

// callPayload is the call object embedded in session events.
type callPayload struct {
	CID    string     `json:"cid"`
	Custom callCustom `json:"custom"`
}

// artifact is a produced call artifact (transcript or recording).
type artifact struct {
	URL string `json:"url"`
}

// Event is a decoded platform webhook. Session started/ended events identify
// the meeting through the call's custom metadata; the remaining kinds only
// carry the composite call id ("<type>:<meeting id>").
type Event struct {
	Type              EventType    `json:"type"`
	CallCID           string       `json:"call_cid"`
	Call              *callPayload `json:"call"`
	CallTranscription *artifact    `json:"call_transcription"`
	CallRecording     *artifact    `json:"call_recording"`
}

// Decode parses a verified raw webhook body. It fails with a validation
// error on malformed JSON or a missing type discriminator; signature
// verification must already have happened on the exact raw bytes.
func Decode(body []byte) (*Event, error) {
	var evt Event
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("malformed webhook payload: %w: %v", nxerrors.ErrValidation, err)
	}
	if evt.Type == "" {
		return nil, fmt.Errorf("webhook payload has no event type: %w", nxerrors.ErrValidation)
	}
	return &evt, nil
}

// MeetingID recovers the meeting id for the event, using the extraction path
// each event kind actually carries.
func (e *Event) MeetingID() (string, error) {
	switch e.Type {
	case EventSessionStarted, EventSessionEnded:
		if e.Call == nil || e.Call.Custom.MeetingID == "" {
			return "", fmt.Errorf("event %s carries no meeting id: %w", e.Type, nxerrors.ErrValidation)
		}
		return e.Call.Custom.MeetingID, nil

	case EventParticipantLeft, EventTranscriptionReady, EventRecordingReady:
		return meetingIDFromCID(e.CallCID)

	default:
		return "", fmt.Errorf("event %s carries no meeting id: %w", e.Type, nxerrors.ErrValidation)
	}
}

// meetingIDFromCID extracts the meeting id from a composite call identifier
// of the form "<call type>:<meeting id>".
func meetingIDFromCID(cid string) (string, error) {
	parts := strings.SplitN(cid, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", fmt.Errorf("call cid %q carries no meeting id: %w", cid, nxerrors.ErrValidation)
	}
	return parts[1], nil
}

// ArtifactURL returns the artifact URL for transcription/recording events.
func (e *Event) ArtifactURL() (string, error) {
	switch e.Type {
	case EventTranscriptionReady:
		if e.CallTranscription == nil || e.CallTranscription.URL == "" {
			return "", fmt.Errorf("transcription event carries no url: %w", nxerrors.ErrValidation)
		}
		return e.CallTranscription.URL, nil
	case EventRecordingReady:
		if e.CallRecording == nil || e.CallRecording.URL == "" {
			return "", fmt.Errorf("recording event carries no url: %w", nxerrors.ErrValidation)
		}
		return e.CallRecording.URL, nil
	default:
		return "", fmt.Errorf("event %s carries no artifact: %w", e.Type, nxerrors.ErrValidation)
	}
}

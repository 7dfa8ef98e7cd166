package webhook

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ismaeeldev/nexa-server/pkg/agents"
	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
	"github.com/ismaeeldev/nexa-server/pkg/meetings"
	"github.com/ismaeeldev/nexa-server/pkg/stream"
)

// tracerName identifies the orchestrator's spans.
const tracerName = "webhook"

// MeetingStore is the slice of the meetings repository the orchestrator
// mutates through. Every transition method applies a conditional update and
// reports ErrNotFound when the precondition does not hold.
type MeetingStore interface {
	Start(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
	RevertStart(ctx context.Context, id uuid.UUID) error
	Finish(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
	CompleteIfActive(ctx context.Context, id uuid.UUID) (*meetings.Meeting, error)
	SetTranscriptURL(ctx context.Context, id uuid.UUID, url string) error
	SetRecordingURL(ctx context.Context, id uuid.UUID, url string) error
}

// AgentStore loads agents for the session-started transition. Lookup is
// unscoped: webhooks act on the platform's authority, not a user's.
type AgentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*agents.Agent, error)
}

// CallPlatform is the slice of the call platform client the orchestrator
// uses directly.
type CallPlatform interface {
	EndCall(ctx context.Context, callType, id string) error
	SessionParticipantCount(ctx context.Context, callType, id string) (int, error)
}

// Connector attaches the AI participant on session start.
type Connector interface {
	Join(ctx context.Context, callID, agentID, instructions string) error
}

// SummaryEnqueuer hands finished transcripts to the summary pipeline.
type SummaryEnqueuer interface {
	EnqueueSummary(ctx context.Context, meetingID, transcriptURL string) error
}

// Orchestrator applies lifecycle events to the meeting store and drives the
// AI connector on the upcoming->active transition.
type Orchestrator struct {
	meetings  MeetingStore
	agents    AgentStore
	platform  CallPlatform
	connector Connector
	summaries SummaryEnqueuer

	// completeOnLastLeave strengthens the participant-left handler: when
	// the session drains to zero participants, the meeting moves straight
	// to completed instead of waiting for processing.
	completeOnLastLeave bool

	tracer  trace.Tracer
	metrics *Metrics
	logger  logging.Logger
}

// Options configures orchestrator behavior.
type Options struct {
	CompleteOnLastLeave bool
}

// NewOrchestrator wires the orchestrator. The summaries enqueuer may be nil;
// summary ingestion is best-effort and never fails a webhook.
func NewOrchestrator(
	store MeetingStore,
	agentStore AgentStore,
	platform CallPlatform,
	connector Connector,
	summaries SummaryEnqueuer,
	opts Options,
	metrics *Metrics,
	logger logging.Logger,
) *Orchestrator {
	if metrics == nil {
		metrics = NewMetrics(prometheus.NewRegistry())
	}

	return &Orchestrator{
		meetings:            store,
		agents:              agentStore,
		platform:            platform,
		connector:           connector,
		summaries:           summaries,
		completeOnLastLeave: opts.CompleteOnLastLeave,
		tracer:              otel.Tracer(tracerName),
		metrics:             metrics,
		logger:              logger.With(logging.F("component", "webhook_orchestrator")),
	}
}

// HandleEvent dispatches one verified, decoded event. Unknown event types
// are acknowledged without side effects. The returned error maps onto the
// response taxonomy through the errors package sentinels.
func (o *Orchestrator) HandleEvent(ctx context.Context, evt *Event) error {
	ctx, span := o.tracer.Start(ctx, "webhook.handle_event",
		trace.WithAttributes(attribute.String("event_type", string(evt.Type))))
	defer span.End()

	timer := prometheus.NewTimer(o.metrics.HandleSeconds.WithLabelValues(string(evt.Type)))
	defer timer.ObserveDuration()

	err := o.dispatch(ctx, evt)

	outcome := nxerrors.OutcomeForError(err)
	o.metrics.EventsTotal.WithLabelValues(string(evt.Type), string(outcome)).Inc()

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		o.logger.Warn("Webhook event rejected",
			logging.F("event_type", string(evt.Type)),
			logging.F("outcome", string(outcome)),
			logging.Err(err))
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, evt *Event) error {
	switch evt.Type {
	case EventSessionStarted:
		return o.handleSessionStarted(ctx, evt)
	case EventSessionEnded:
		return o.handleSessionEnded(ctx, evt)
	case EventParticipantLeft:
		return o.handleParticipantLeft(ctx, evt)
	case EventTranscriptionReady:
		return o.handleTranscriptionReady(ctx, evt)
	case EventRecordingReady:
		return o.handleRecordingReady(ctx, evt)
	default:
		// The platform emits more kinds than the lifecycle needs; they
		// are acknowledged so delivery is not retried.
		o.logger.Debug("Ignoring event type", logging.F("event_type", string(evt.Type)))
		return nil
	}
}

// resolveMeetingID extracts and parses the meeting id from the event.
func (o *Orchestrator) resolveMeetingID(evt *Event) (uuid.UUID, error) {
	raw, err := evt.MeetingID()
	if err != nil {
		return uuid.Nil, err
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("meeting id %q is not a valid uuid: %w", raw, nxerrors.ErrValidation)
	}
	return id, nil
}

// handleSessionStarted drives upcoming->active. The conditional start update
// commits first; if the agent load or connector attach then fails, the
// transition is compensated back to upcoming so the platform's retry can
// re-run the whole handler cleanly.
func (o *Orchestrator) handleSessionStarted(ctx context.Context, evt *Event) error {
	id, err := o.resolveMeetingID(evt)
	if err != nil {
		return err
	}

	meeting, err := o.meetings.Start(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to start meeting %s: %w", id, err)
	}

	agent, err := o.agents.GetByID(ctx, meeting.AgentID)
	if err != nil {
		o.compensateStart(ctx, id)
		return fmt.Errorf("failed to load agent for meeting %s: %w", id, err)
	}

	if err := o.connector.Join(ctx, id.String(), agent.ID.String(), agent.Instructions); err != nil {
		o.compensateStart(ctx, id)
		return fmt.Errorf("failed to join agent to meeting %s: %w: %v", id, nxerrors.ErrDependency, err)
	}

	o.logger.Info("Meeting started",
		logging.F("meeting_id", id.String()),
		logging.F("agent_id", agent.ID.String()))
	return nil
}

// compensateStart reverts a committed active transition after a downstream
// failure. Best effort: if the revert itself fails the meeting stays active
// and the mismatch is logged for the retry to resolve.
func (o *Orchestrator) compensateStart(ctx context.Context, id uuid.UUID) {
	o.metrics.CompensationsTotal.Inc()
	if err := o.meetings.RevertStart(ctx, id); err != nil {
		o.logger.Error("Failed to revert started meeting",
			logging.F("meeting_id", id.String()),
			logging.Err(err))
	}
}

// handleSessionEnded drives active->processing.
func (o *Orchestrator) handleSessionEnded(ctx context.Context, evt *Event) error {
	id, err := o.resolveMeetingID(evt)
	if err != nil {
		return err
	}

	if _, err := o.meetings.Finish(ctx, id); err != nil {
		return fmt.Errorf("failed to finish meeting %s: %w", id, err)
	}

	o.logger.Info("Meeting moved to processing", logging.F("meeting_id", id.String()))
	return nil
}

// handleParticipantLeft ends the underlying call so the platform emits a
// session-ended event, which in turn drives active->processing. With the
// last-leave strengthening enabled, an empty session additionally moves the
// meeting straight to completed.
func (o *Orchestrator) handleParticipantLeft(ctx context.Context, evt *Event) error {
	id, err := o.resolveMeetingID(evt)
	if err != nil {
		return err
	}

	if err := o.platform.EndCall(ctx, stream.DefaultCallType, id.String()); err != nil {
		return fmt.Errorf("failed to end call for meeting %s: %w", id, err)
	}

	if !o.completeOnLastLeave {
		return nil
	}

	count, err := o.platform.SessionParticipantCount(ctx, stream.DefaultCallType, id.String())
	if err != nil {
		return fmt.Errorf("failed to read session participants for meeting %s: %w", id, err)
	}
	if count > 0 {
		return nil
	}

	if _, err := o.meetings.CompleteIfActive(ctx, id); err != nil {
		// Not-found means the meeting already left active; the empty
		// session is then stale information, not an error.
		if nxerrors.IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to complete drained meeting %s: %w", id, err)
	}

	o.logger.Info("Meeting completed on last leave", logging.F("meeting_id", id.String()))
	return nil
}

// handleTranscriptionReady attaches the transcript URL and hands the meeting
// to the summary pipeline. Status, started_at, and ended_at are untouched.
func (o *Orchestrator) handleTranscriptionReady(ctx context.Context, evt *Event) error {
	id, err := o.resolveMeetingID(evt)
	if err != nil {
		return err
	}

	url, err := evt.ArtifactURL()
	if err != nil {
		return err
	}

	if err := o.meetings.SetTranscriptURL(ctx, id, url); err != nil {
		return fmt.Errorf("failed to store transcript for meeting %s: %w", id, err)
	}

	if o.summaries != nil {
		if err := o.summaries.EnqueueSummary(ctx, id.String(), url); err != nil {
			// Best effort: summary ingestion failing must not make the
			// platform redeliver an already-applied artifact event.
			o.logger.Error("Failed to enqueue summary job",
				logging.F("meeting_id", id.String()),
				logging.Err(err))
		}
	}

	return nil
}

// handleRecordingReady attaches the recording URL. Status untouched.
func (o *Orchestrator) handleRecordingReady(ctx context.Context, evt *Event) error {
	id, err := o.resolveMeetingID(evt)
	if err != nil {
		return err
	}

	url, err := evt.ArtifactURL()
	if err != nil {
		return err
	}

	if err := o.meetings.SetRecordingURL(ctx, id, url); err != nil {
		return fmt.Errorf("failed to store recording for meeting %s: %w", id, err)
	}
	return nil
}

package meetings

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

const meetingColumns = `
	id, name, agent_id, user_id, status,
	started_at, ended_at, transcript_url, recording_url, summary,
	created_at, updated_at
`

// Repository provides database operations for meetings. Lifecycle transitions
// are conditional row updates; the row-level atomicity of the predicate makes
// them safe under concurrent and duplicate webhook delivery.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new meeting repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "meeting_repository")),
	}
}

// ==================== CRUD ====================

// Create inserts a new meeting in status upcoming.
func (r *Repository) Create(ctx context.Context, m *Meeting) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = StatusUpcoming
	}

	query := `
		INSERT INTO meetings (id, name, agent_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		m.ID,
		m.Name,
		m.AgentID,
		m.UserID,
		m.Status,
	).Scan(&m.CreatedAt, &m.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create meeting: %w", err)
	}

	r.logger.Debug("Meeting created",
		logging.F("id", m.ID.String()),
		logging.F("agent_id", m.AgentID.String()))

	return nil
}

// GetByID retrieves a meeting by id without owner scoping. The webhook path
// acts with platform-level authority and uses this lookup.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`
	return r.scanMeeting(ctx, query, id)
}

// GetOwned retrieves a meeting by id, scoped to the owning user.
func (r *Repository) GetOwned(ctx context.Context, id uuid.UUID, userID string) (*Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1 AND user_id = $2`
	return r.scanMeeting(ctx, query, id, userID)
}

// List returns the user's meetings joined with each agent's display name.
func (r *Repository) List(ctx context.Context, userID string) ([]*MeetingWithAgent, error) {
	query := `
		SELECT
			m.id, m.name, m.agent_id, m.user_id, m.status,
			m.started_at, m.ended_at, m.transcript_url, m.recording_url, m.summary,
			m.created_at, m.updated_at,
			a.name
		FROM meetings m
		LEFT JOIN agents a ON a.id = m.agent_id
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}
	defer rows.Close()

	var result []*MeetingWithAgent
	for rows.Next() {
		mw := &MeetingWithAgent{}
		err := rows.Scan(
			&mw.ID, &mw.Name, &mw.AgentID, &mw.UserID, &mw.Status,
			&mw.StartedAt, &mw.EndedAt, &mw.TranscriptURL, &mw.RecordingURL, &mw.Summary,
			&mw.CreatedAt, &mw.UpdatedAt,
			&mw.AgentName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		result = append(result, mw)
	}

	return result, rows.Err()
}

// Update updates a meeting's name and agent binding, scoped to the owner.
func (r *Repository) Update(ctx context.Context, m *Meeting, userID string) error {
	query := `
		UPDATE meetings SET
			name = $3,
			agent_id = $4,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query, m.ID, userID, m.Name, m.AgentID).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nxerrors.ErrNotFound
		}
		return fmt.Errorf("failed to update meeting: %w", err)
	}

	return nil
}

// Delete removes a meeting, scoped to the owner.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nxerrors.ErrNotFound
	}
	return nil
}

// ==================== Lifecycle transitions ====================

// Start transitions upcoming -> active and stamps started_at. Returns
// ErrNotFound when the meeting is absent or its current status forbids the
// transition, which makes duplicate session_started deliveries a no-op.
func (r *Repository) Start(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `
		UPDATE meetings SET
			status = $3,
			started_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + meetingColumns

	return r.scanMeeting(ctx, query, id, StatusUpcoming, StatusActive)
}

// RevertStart compensates a failed AI attach: active -> upcoming with
// started_at cleared. Conditional on status=active so it can never clobber a
// later legitimate transition.
func (r *Repository) RevertStart(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE meetings SET
			status = $3,
			started_at = NULL,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	_, err := r.pool.Exec(ctx, query, id, StatusActive, StatusUpcoming)
	if err != nil {
		return fmt.Errorf("failed to revert meeting start: %w", err)
	}
	return nil
}

// Finish transitions active -> processing and stamps ended_at. Duplicate or
// late session_ended deliveries fail the predicate and map to ErrNotFound.
func (r *Repository) Finish(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `
		UPDATE meetings SET
			status = $3,
			ended_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + meetingColumns

	return r.scanMeeting(ctx, query, id, StatusActive, StatusProcessing)
}

// CompleteIfActive transitions active -> completed and stamps ended_at.
// Used only by the optional participant-left strengthening.
func (r *Repository) CompleteIfActive(ctx context.Context, id uuid.UUID) (*Meeting, error) {
	query := `
		UPDATE meetings SET
			status = $3,
			ended_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + meetingColumns

	return r.scanMeeting(ctx, query, id, StatusActive, StatusCompleted)
}

// Cancel transitions upcoming -> cancelled, scoped to the owner. Cancelled is
// terminal; the conditional predicate keeps webhook transitions from ever
// overwriting it.
func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, userID string) (*Meeting, error) {
	query := `
		UPDATE meetings SET
			status = $4,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = $3
		RETURNING ` + meetingColumns

	return r.scanMeeting(ctx, query, id, userID, StatusUpcoming, StatusCancelled)
}

// ==================== Artifacts ====================

// SetTranscriptURL attaches the transcript URL without touching status or
// timestamps. Returns ErrNotFound when the meeting does not exist.
func (r *Repository) SetTranscriptURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.setArtifact(ctx, id, "transcript_url", url)
}

// SetRecordingURL attaches the recording URL without touching status or
// timestamps. Returns ErrNotFound when the meeting does not exist.
func (r *Repository) SetRecordingURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.setArtifact(ctx, id, "recording_url", url)
}

// SetSummary stores the post-processed summary text.
func (r *Repository) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	return r.setArtifact(ctx, id, "summary", summary)
}

func (r *Repository) setArtifact(ctx context.Context, id uuid.UUID, column, value string) error {
	query := fmt.Sprintf(`UPDATE meetings SET %s = $2, updated_at = NOW() WHERE id = $1`, column)

	tag, err := r.pool.Exec(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return nxerrors.ErrNotFound
	}
	return nil
}

// scanMeeting runs a single-row meeting query and maps no-rows to ErrNotFound.
func (r *Repository) scanMeeting(ctx context.Context, query string, args ...interface{}) (*Meeting, error) {
	m := &Meeting{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&m.ID, &m.Name, &m.AgentID, &m.UserID, &m.Status,
		&m.StartedAt, &m.EndedAt, &m.TranscriptURL, &m.RecordingURL, &m.Summary,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nxerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

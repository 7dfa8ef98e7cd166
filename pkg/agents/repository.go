package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	nxerrors "github.com/ismaeeldev/nexa-server/pkg/errors"
	"github.com/ismaeeldev/nexa-server/pkg/logging"
)

// pgForeignKeyViolation is the Postgres error code raised when deleting an
// agent that meetings still reference (ON DELETE RESTRICT).
const pgForeignKeyViolation = "23503"

// Repository provides database operations for agents.
type Repository struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewRepository creates a new agent repository.
func NewRepository(pool *pgxpool.Pool, logger logging.Logger) *Repository {
	return &Repository{
		pool:   pool,
		logger: logger.With(logging.F("component", "agent_repository")),
	}
}

// Create inserts a new agent owned by the given user.
func (r *Repository) Create(ctx context.Context, a *Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	query := `
		INSERT INTO agents (id, name, instructions, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		a.ID,
		a.Name,
		a.Instructions,
		a.UserID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	r.logger.Debug("Agent created",
		logging.F("id", a.ID.String()),
		logging.F("name", a.Name))

	return nil
}

// GetByID retrieves an agent by id without owner scoping. The webhook path
// acts with platform-level authority and uses this lookup.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	query := `
		SELECT id, name, instructions, user_id, created_at, updated_at
		FROM agents
		WHERE id = $1
	`
	return r.scanAgent(ctx, query, id)
}

// GetOwned retrieves an agent by id, scoped to the owning user.
func (r *Repository) GetOwned(ctx context.Context, id uuid.UUID, userID string) (*Agent, error) {
	query := `
		SELECT id, name, instructions, user_id, created_at, updated_at
		FROM agents
		WHERE id = $1 AND user_id = $2
	`
	return r.scanAgent(ctx, query, id, userID)
}

// List returns all agents owned by the given user.
func (r *Repository) List(ctx context.Context, userID string) ([]*Agent, error) {
	query := `
		SELECT id, name, instructions, user_id, created_at, updated_at
		FROM agents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var result []*Agent
	for rows.Next() {
		a := &Agent{}
		if err := rows.Scan(&a.ID, &a.Name, &a.Instructions, &a.UserID, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		result = append(result, a)
	}

	return result, rows.Err()
}

// Update updates an agent's name and instructions, scoped to the owner.
func (r *Repository) Update(ctx context.Context, a *Agent, userID string) error {
	query := `
		UPDATE agents SET
			name = $3,
			instructions = $4,
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING updated_at
	`

	err := r.pool.QueryRow(ctx, query, a.ID, userID, a.Name, a.Instructions).Scan(&a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nxerrors.ErrNotFound
		}
		return fmt.Errorf("failed to update agent: %w", err)
	}

	return nil
}

// Delete removes an agent, scoped to the owner. Returns ErrConflict when
// meetings still reference the agent.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return fmt.Errorf("agent is still referenced by meetings: %w", nxerrors.ErrConflict)
		}
		return fmt.Errorf("failed to delete agent: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return nxerrors.ErrNotFound
	}

	r.logger.Debug("Agent deleted", logging.F("id", id.String()))
	return nil
}

// scanAgent runs a single-row agent query and maps no-rows to ErrNotFound.
func (r *Repository) scanAgent(ctx context.Context, query string, args ...interface{}) (*Agent, error) {
	a := &Agent{}
	err := r.pool.QueryRow(ctx, query, args...).
		Scan(&a.ID, &a.Name, &a.Instructions, &a.UserID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nxerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	return a, nil
}

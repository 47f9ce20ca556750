package database

import (
	"context"
	"errors"
	"time"

	"archiwum-plikow/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RootPath is the directory every fresh session starts in. Safe navigation
// requests reset the session back to it.
const RootPath = "/"

type CreateSessionParams struct {
	ID           uuid.UUID
	PrincipalID  int64
	APIToken     string
	RefreshToken string
	UserAgent    string
	ClientIP     string
	ExpiresAt    time.Time
}

func (q *Queries) CreateSession(ctx context.Context, arg CreateSessionParams) error {
	query := `
		INSERT INTO sessions (id, principal_id, api_token, current_path, refresh_token, user_agent, client_ip, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := q.db.Exec(ctx, query, arg.ID, arg.PrincipalID, arg.APIToken, RootPath, arg.RefreshToken, arg.UserAgent, arg.ClientIP, arg.ExpiresAt)
	return err
}

func (q *Queries) GetSessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	query := `
		SELECT id, principal_id, api_token, current_path, user_agent, client_ip, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > NOW()
	`
	var session models.Session
	err := q.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.PrincipalID,
		&session.APIToken,
		&session.CurrentPath,
		&session.UserAgent,
		&session.ClientIP,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (q *Queries) UpdateSessionPath(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE sessions SET current_path = $1 WHERE id = $2`
	_, err := q.db.Exec(ctx, query, path, id)
	return err
}

func (q *Queries) GetSessionByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	query := `
		SELECT id, principal_id, api_token, current_path, user_agent, client_ip, expires_at, created_at
		FROM sessions
		WHERE refresh_token = $1 AND expires_at > NOW()
	`
	var session models.Session
	err := q.db.QueryRow(ctx, query, refreshToken).Scan(
		&session.ID,
		&session.PrincipalID,
		&session.APIToken,
		&session.CurrentPath,
		&session.UserAgent,
		&session.ClientIP,
		&session.ExpiresAt,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (q *Queries) ListSessionsForPrincipal(ctx context.Context, principalID int64) ([]models.Session, error) {
	query := `
		SELECT id, principal_id, api_token, current_path, user_agent, client_ip, expires_at, created_at
		FROM sessions
		WHERE principal_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
	`
	rows, err := q.db.Query(ctx, query, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var session models.Session
		if err := rows.Scan(
			&session.ID,
			&session.PrincipalID,
			&session.APIToken,
			&session.CurrentPath,
			&session.UserAgent,
			&session.ClientIP,
			&session.ExpiresAt,
			&session.CreatedAt,
		); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if sessions == nil {
		return []models.Session{}, nil
	}

	return sessions, nil
}

func (q *Queries) DeleteSessionByID(ctx context.Context, sessionID uuid.UUID, principalID int64) error {
	query := `DELETE FROM sessions WHERE id = $1 AND principal_id = $2`
	_, err := q.db.Exec(ctx, query, sessionID, principalID)
	return err
}

func (q *Queries) DeleteAllSessionsForPrincipal(ctx context.Context, principalID int64) error {
	query := `DELETE FROM sessions WHERE principal_id = $1`
	_, err := q.db.Exec(ctx, query, principalID)
	return err
}

func (q *Queries) DeleteSessionByRefreshToken(ctx context.Context, refreshToken string) error {
	query := `DELETE FROM sessions WHERE refresh_token = $1`
	_, err := q.db.Exec(ctx, query, refreshToken)
	return err
}

package database

import (
	"context"
	"errors"
	"strings"

	"archiwum-plikow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrPrincipalInvalid = errors.New("display name and email are required")
var ErrDuplicateEmail = errors.New("a principal with this email already exists")

type CreatePrincipalParams struct {
	DisplayName      string
	Email            string
	AvatarURL        *string
	GroupAffiliation *string
}

func (q *Queries) CreatePrincipal(ctx context.Context, arg CreatePrincipalParams) (*models.Principal, error) {
	if strings.TrimSpace(arg.DisplayName) == "" || strings.TrimSpace(arg.Email) == "" {
		return nil, ErrPrincipalInvalid
	}

	query := `
		INSERT INTO principals (display_name, email, avatar_url, group_affiliation)
		VALUES ($1, $2, $3, $4)
		RETURNING id, display_name, email, avatar_url, group_affiliation, created_at
	`
	row := q.db.QueryRow(ctx, query, arg.DisplayName, arg.Email, arg.AvatarURL, arg.GroupAffiliation)

	var principal models.Principal
	err := row.Scan(
		&principal.ID,
		&principal.DisplayName,
		&principal.Email,
		&principal.AvatarURL,
		&principal.GroupAffiliation,
		&principal.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}

	return &principal, nil
}

func (q *Queries) GetPrincipalByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `
		SELECT id, display_name, email, avatar_url, group_affiliation, created_at
		FROM principals
		WHERE email = $1
	`
	var principal models.Principal
	err := q.db.QueryRow(ctx, query, email).Scan(
		&principal.ID,
		&principal.DisplayName,
		&principal.Email,
		&principal.AvatarURL,
		&principal.GroupAffiliation,
		&principal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &principal, nil
}

func (q *Queries) GetPrincipalByID(ctx context.Context, id int64) (*models.Principal, error) {
	query := `
		SELECT id, display_name, email, avatar_url, group_affiliation, created_at
		FROM principals
		WHERE id = $1
	`
	var principal models.Principal
	err := q.db.QueryRow(ctx, query, id).Scan(
		&principal.ID,
		&principal.DisplayName,
		&principal.Email,
		&principal.AvatarURL,
		&principal.GroupAffiliation,
		&principal.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &principal, nil
}

// UpdatePrincipalProfile refreshes the fields copied from the identity
// provider on every successful login.
func (q *Queries) UpdatePrincipalProfile(ctx context.Context, id int64, displayName string, avatarURL *string, groupAffiliation *string) error {
	query := `
		UPDATE principals
		SET display_name = $1, avatar_url = $2, group_affiliation = $3
		WHERE id = $4
	`
	_, err := q.db.Exec(ctx, query, displayName, avatarURL, groupAffiliation, id)
	return err
}

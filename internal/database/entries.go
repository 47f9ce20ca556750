package database

import (
	"context"
	"errors"
	"time"

	"archiwum-plikow/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrEntryNotFound = errors.New("entry not found")
var ErrDuplicateEntryName = errors.New("an entry with the same name already exists at this path")

type CreateEntryParams struct {
	ID               string
	Name             string
	Path             string
	IsDirectory      bool
	Owner            *string
	GroupAffiliation *string
}

func (q *Queries) CreateEntry(ctx context.Context, arg CreateEntryParams) (*models.Entry, error) {
	query := `
		INSERT INTO entries (id, name, path, is_directory, visible, owner, group_affiliation, created_at, modified_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $6, $7, $8)
		RETURNING id, name, path, is_directory, visible, owner, group_affiliation, created_at, modified_at
	`
	now := time.Now()

	row := q.db.QueryRow(ctx, query,
		arg.ID,
		arg.Name,
		arg.Path,
		arg.IsDirectory,
		arg.Owner,
		arg.GroupAffiliation,
		now,
		now,
	)

	var entry models.Entry
	err := row.Scan(
		&entry.ID,
		&entry.Name,
		&entry.Path,
		&entry.IsDirectory,
		&entry.Visible,
		&entry.Owner,
		&entry.GroupAffiliation,
		&entry.CreatedAt,
		&entry.ModifiedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEntryName
		}
		return nil, err
	}

	return &entry, nil
}

func (q *Queries) GetEntryByID(ctx context.Context, id string) (*models.Entry, error) {
	query := `
		SELECT id, name, path, is_directory, visible, owner, group_affiliation, created_at, modified_at
		FROM entries
		WHERE id = $1
	`
	var entry models.Entry
	err := q.db.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Name,
		&entry.Path,
		&entry.IsDirectory,
		&entry.Visible,
		&entry.Owner,
		&entry.GroupAffiliation,
		&entry.CreatedAt,
		&entry.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &entry, nil
}

// ListVisibleEntries returns the non-removed entries of one mirrored
// directory, folders first, the same ordering the listing UI shows.
func (q *Queries) ListVisibleEntries(ctx context.Context, path string) ([]models.Entry, error) {
	query := `
		SELECT id, name, path, is_directory, visible, owner, group_affiliation, created_at, modified_at
		FROM entries
		WHERE path = $1 AND visible = TRUE
		ORDER BY is_directory DESC, name
	`
	rows, err := q.db.Query(ctx, query, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.Name,
			&entry.Path,
			&entry.IsDirectory,
			&entry.Visible,
			&entry.Owner,
			&entry.GroupAffiliation,
			&entry.CreatedAt,
			&entry.ModifiedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if entries == nil {
		return []models.Entry{}, nil
	}

	return entries, nil
}

// GetEntryNamesByPath returns the names of every entry mirrored at path,
// removed ones included. Reconciliation matches remote names against this
// set, so a hidden entry that still exists remotely is neither recreated
// nor deleted.
func (q *Queries) GetEntryNamesByPath(ctx context.Context, path string) (map[string]bool, error) {
	query := `SELECT name FROM entries WHERE path = $1`
	rows, err := q.db.Query(ctx, query, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names[name] = true
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}

// DeleteEntriesMissingFromListing hard-deletes every entry at path whose
// name does not appear in the remote listing. The delete pass is scoped to
// the reconciled path, so mirrors of other directories are never touched.
func (q *Queries) DeleteEntriesMissingFromListing(ctx context.Context, path string, remoteNames []string) (int64, error) {
	if remoteNames == nil {
		remoteNames = []string{}
	}

	query := `DELETE FROM entries WHERE path = $1 AND NOT (name = ANY($2))`
	res, err := q.db.Exec(ctx, query, path, remoteNames)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected(), nil
}

func (q *Queries) RenameEntry(ctx context.Context, id string, newName string) (bool, error) {
	query := `
		UPDATE entries
		SET name = $1, modified_at = $2
		WHERE id = $3 AND visible = TRUE
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newName, now, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateEntryName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) MoveEntry(ctx context.Context, id string, newPath string) (bool, error) {
	query := `
		UPDATE entries
		SET path = $1, modified_at = $2
		WHERE id = $3 AND visible = TRUE
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, newPath, now, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, ErrDuplicateEntryName
		}
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

// HideEntry soft-removes an entry. The row stays in the mirror; only
// reconciliation (or an explicit trash purge) ever deletes it.
func (q *Queries) HideEntry(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE entries
		SET visible = FALSE, modified_at = $1
		WHERE id = $2 AND visible = TRUE
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, now, id)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) RestoreEntry(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE entries
		SET visible = TRUE, modified_at = $1
		WHERE id = $2 AND visible = FALSE
	`
	now := time.Now()
	res, err := q.db.Exec(ctx, query, now, id)
	if err != nil {
		return false, err
	}

	return res.RowsAffected() > 0, nil
}

func (q *Queries) ListHiddenEntries(ctx context.Context, limit int, offset int) ([]models.Entry, error) {
	query := `
		SELECT id, name, path, is_directory, visible, owner, group_affiliation, created_at, modified_at
		FROM entries
		WHERE visible = FALSE
		ORDER BY modified_at DESC LIMIT $1 OFFSET $2
	`
	rows, err := q.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.Entry
	for rows.Next() {
		var entry models.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.Name,
			&entry.Path,
			&entry.IsDirectory,
			&entry.Visible,
			&entry.Owner,
			&entry.GroupAffiliation,
			&entry.CreatedAt,
			&entry.ModifiedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if entries == nil {
		return []models.Entry{}, nil
	}

	return entries, nil
}

func (q *Queries) PurgeHiddenEntries(ctx context.Context) ([]string, error) {
	query := `DELETE FROM entries WHERE visible = FALSE RETURNING id`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purgedIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		purgedIDs = append(purgedIDs, id)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return purgedIDs, nil
}

func (q *Queries) EntryExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM entries WHERE id = $1)"
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

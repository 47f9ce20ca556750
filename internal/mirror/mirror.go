// Package mirror keeps the local entry table consistent with the remote
// storage listing, so navigation and search never round-trip the provider.
package mirror

import (
	"context"
	"fmt"
	"strings"

	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/models"
	"archiwum-plikow/internal/provider"

	"github.com/jaevor/go-nanoid"
)

type Mirror struct {
	store    *database.Store
	provider *provider.Client
	newID    func() string
}

func New(store *database.Store, client *provider.Client) (*Mirror, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	return &Mirror{
		store:    store,
		provider: client,
		newID:    generateID,
	}, nil
}

// Reconcile synchronizes the mirror of one directory with the remote listing:
// unknown remote names become visible entries, local entries whose name no
// longer appears remotely are hard-deleted. Matching is by name only and
// deliberately ignores the visible flag, so a soft-removed entry that still
// exists remotely stays hidden instead of being recreated. The delete pass is
// scoped to the reconciled path and never touches mirrors of other
// directories. A provider failure propagates to the caller, no retry.
func (m *Mirror) Reconcile(ctx context.Context, token, path string) error {
	meta, err := m.provider.Metadata(ctx, token, path)
	if err != nil {
		return fmt.Errorf("reconcile %q: %w", path, err)
	}

	return m.store.ExecTx(ctx, func(q *database.Queries) error {
		known, err := q.GetEntryNamesByPath(ctx, path)
		if err != nil {
			return err
		}

		remoteNames := make([]string, 0, len(meta.Contents))
		for _, remote := range meta.Contents {
			name := provider.BaseName(remote.Path)
			if name == "" {
				continue
			}
			remoteNames = append(remoteNames, name)

			if known[name] {
				continue
			}

			_, err := q.CreateEntry(ctx, database.CreateEntryParams{
				ID:          m.newID(),
				Name:        name,
				Path:        path,
				IsDirectory: remote.IsDir,
			})
			if err != nil {
				return err
			}
			known[name] = true
		}

		_, err = q.DeleteEntriesMissingFromListing(ctx, path, remoteNames)
		return err
	})
}

// Search filters the visible entries of one directory by a case-sensitive
// substring match on the name. The scan runs in memory over the listing and
// preserves its order; there is no ranking.
func (m *Mirror) Search(ctx context.Context, path, term string) ([]models.Entry, error) {
	entries, err := m.store.ListVisibleEntries(ctx, path)
	if err != nil {
		return nil, err
	}

	if term == "" {
		return entries, nil
	}

	filtered := make([]models.Entry, 0, len(entries))
	for _, entry := range entries {
		if strings.Contains(entry.Name, term) {
			filtered = append(filtered, entry)
		}
	}

	return filtered, nil
}

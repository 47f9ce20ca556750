package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/models"

	"github.com/go-chi/chi/v5"
)

// @Summary      List removed entries
// @Description  Retrieves the entries that have been soft-removed from the listing. They still exist in the remote storage account.
// @Tags         trash
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Entry
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /trash [get]
func (s *Server) ListTrashHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	entries, err := s.store.ListHiddenEntries(r.Context(), limit, offset)
	if err != nil {
		http.Error(w, "Failed to list trash contents", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// @Summary      Restore a removed entry
// @Description  Makes a soft-removed entry visible in its directory again.
// @Tags         trash
// @Produce      json
// @Security     BearerAuth
// @Param        entryId  path      string  true  "Entry ID to restore"
// @Success      200  {object}  models.Entry
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found in trash"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /trash/{entryId}/restore [post]
func (s *Server) RestoreEntryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	entryID := chi.URLParam(r, "entryId")

	var restoredEntry *models.Entry

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		success, err := q.RestoreEntry(r.Context(), entryID)
		if err != nil {
			return err
		}
		if !success {
			return database.ErrEntryNotFound
		}

		restoredEntry, err = q.GetEntryByID(r.Context(), entryID)
		if err != nil {
			return err
		}
		if restoredEntry == nil {
			return errors.New("failed to retrieve restored entry")
		}

		return q.LogEvent(r.Context(), claims.PrincipalID, "entry_restored", restoredEntry)
	})
	if txErr != nil {
		if errors.Is(txErr, database.ErrEntryNotFound) {
			http.Error(w, "Entry not found in trash", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to restore entry", http.StatusInternalServerError)
		return
	}

	s.publishEvent(claims.PrincipalID, "entry_restored", restoredEntry)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(restoredEntry)
}

// @Summary      Purge the trash
// @Description  Permanently drops all soft-removed entries from the mirror. The remote objects are untouched; a later refresh of their directory would mirror them again as visible entries. This action cannot be undone.
// @Tags         trash
// @Security     BearerAuth
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /trash/purge [delete]
func (s *Server) PurgeTrashHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	var purgedIDs []string

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		purgedIDs, err = q.PurgeHiddenEntries(r.Context())
		if err != nil {
			return err
		}

		if len(purgedIDs) == 0 {
			return nil
		}
		return q.LogEvent(r.Context(), claims.PrincipalID, "trash_purged", map[string]interface{}{"entry_ids": purgedIDs})
	})
	if txErr != nil {
		log.Printf("ERROR: Failed to purge trash: %v", txErr)
		http.Error(w, "Failed to purge trash", http.StatusInternalServerError)
		return
	}

	if len(purgedIDs) > 0 {
		s.publishEvent(claims.PrincipalID, "trash_purged", map[string]interface{}{"entry_ids": purgedIDs})
	}

	w.WriteHeader(http.StatusNoContent)
}

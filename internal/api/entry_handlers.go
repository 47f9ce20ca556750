package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/jaevor/go-nanoid"
)

func (s *Server) generateUniqueID(ctx context.Context) (string, error) {
	maxRetries := 10

	generateID, err := nanoid.Standard(21)
	if err != nil {
		return "", fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	for i := 0; i < maxRetries; i++ {
		id := generateID()
		exists, err := s.store.EntryExists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("failed to check for entry existence: %w", err)
		}
		if !exists {
			return id, nil
		}
	}

	return "", fmt.Errorf("failed to generate a unique ID after %d attempts", maxRetries)
}

// @Summary      List entries
// @Description  Lists the visible entries of the session's current directory. An optional case-sensitive search term filters by name substring.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        q  query     string  false  "Substring to match against entry names"
// @Success      200  {array}   models.Entry
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files [get]
func (s *Server) ListEntriesHandler(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())

	entries, err := s.mirror.Search(r.Context(), session.CurrentPath, r.URL.Query().Get("q"))
	if err != nil {
		http.Error(w, "Failed to list entries", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// @Summary      Refresh the mirror
// @Description  Reconciles the local metadata mirror of the current directory against the remote storage listing. New remote objects appear as entries; locally mirrored names missing from the listing are dropped.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Entry
// @Failure      401  {string}  string "Unauthorized"
// @Failure      502  {string}  string "Remote storage provider unavailable"
// @Router       /refresh [get]
func (s *Server) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())

	if err := s.mirror.Reconcile(r.Context(), session.APIToken, session.CurrentPath); err != nil {
		log.Printf("ERROR: Reconciliation of %q failed: %v", session.CurrentPath, err)
		http.Error(w, "Remote storage provider unavailable", http.StatusBadGateway)
		return
	}

	entries, err := s.store.ListVisibleEntries(r.Context(), session.CurrentPath)
	if err != nil {
		http.Error(w, "Failed to list entries", http.StatusInternalServerError)
		return
	}

	s.publishEvent(claims.PrincipalID, "mirror_refreshed", map[string]string{"path": session.CurrentPath})

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// @Summary      Upload a file
// @Description  Streams the file to the remote storage provider under the session's current directory and records a visible entry in the mirror, owned by the uploader.
// @Tags         files
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file  formData  file  true  "File to upload"
// @Success      201  {object}  models.Entry
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      409  {string}  string "An entry with the same name already exists"
// @Failure      502  {string}  string "Remote storage provider unavailable"
// @Router       /files [post]
func (s *Server) UploadEntryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, 1<<30)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Error parsing multipart form", http.StatusBadRequest)
		return
	}

	file, handler, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Error retrieving the file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := strings.TrimSpace(handler.Filename)
	if name == "" || strings.Contains(name, "/") {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	principal, err := s.store.GetPrincipalByID(r.Context(), claims.PrincipalID)
	if err != nil || principal == nil {
		http.Error(w, "Failed to resolve uploader", http.StatusInternalServerError)
		return
	}

	if err := s.provider.PutFile(r.Context(), session.APIToken, remotePath(session.CurrentPath, name), file); err != nil {
		log.Printf("ERROR: Upload of %q to provider failed: %v", name, err)
		http.Error(w, "Remote storage provider unavailable", http.StatusBadGateway)
		return
	}

	entryID, err := s.generateUniqueID(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var entry *models.Entry
	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		var err error
		entry, err = q.CreateEntry(r.Context(), database.CreateEntryParams{
			ID:               entryID,
			Name:             name,
			Path:             session.CurrentPath,
			IsDirectory:      false,
			Owner:            &principal.DisplayName,
			GroupAffiliation: principal.GroupAffiliation,
		})
		if err != nil {
			return err
		}
		return q.LogEvent(r.Context(), claims.PrincipalID, "entry_uploaded", entry)
	})
	if txErr != nil {
		if errors.Is(txErr, database.ErrDuplicateEntryName) {
			http.Error(w, txErr.Error(), http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create entry record", http.StatusInternalServerError)
		return
	}

	s.publishEvent(claims.PrincipalID, "entry_uploaded", entry)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entry)
}

type RenameEntryRequest struct {
	Name string `json:"name" example:"raport-2016.pdf"`
}

// @Summary      Rename an entry
// @Description  Renames the remote object and updates the mirror in place.
// @Tags         files
// @Accept       json
// @Security     BearerAuth
// @Param        entryId        path      string              true  "Entry ID"
// @Param        renameRequest  body      RenameEntryRequest  true  "New name"
// @Success      200  {object}  models.Entry
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found"
// @Failure      409  {string}  string "An entry with the same name already exists"
// @Failure      502  {string}  string "Remote storage provider unavailable"
// @Router       /files/{entryId}/rename [post]
func (s *Server) RenameEntryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())
	entryID := chi.URLParam(r, "entryId")

	var req RenameEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	newName := strings.TrimSpace(req.Name)
	if newName == "" || strings.Contains(newName, "/") {
		http.Error(w, "Invalid entry name", http.StatusBadRequest)
		return
	}

	entry, err := s.store.GetEntryByID(r.Context(), entryID)
	if err != nil {
		http.Error(w, "Failed to retrieve entry", http.StatusInternalServerError)
		return
	}
	if entry == nil || !entry.Visible {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	err = s.provider.FileMove(r.Context(), session.APIToken,
		remotePath(entry.Path, entry.Name),
		remotePath(entry.Path, newName),
	)
	if err != nil {
		log.Printf("ERROR: Remote rename of %q failed: %v", entry.Name, err)
		http.Error(w, "Remote storage provider unavailable", http.StatusBadGateway)
		return
	}

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		success, err := q.RenameEntry(r.Context(), entryID, newName)
		if err != nil {
			return err
		}
		if !success {
			return database.ErrEntryNotFound
		}
		return q.LogEvent(r.Context(), claims.PrincipalID, "entry_renamed", map[string]string{
			"id": entryID, "old_name": entry.Name, "new_name": newName,
		})
	})
	if txErr != nil {
		if errors.Is(txErr, database.ErrDuplicateEntryName) {
			http.Error(w, txErr.Error(), http.StatusConflict)
			return
		}
		if errors.Is(txErr, database.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to rename entry", http.StatusInternalServerError)
		return
	}

	entry.Name = newName
	s.publishEvent(claims.PrincipalID, "entry_renamed", entry)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

type MoveEntryRequest struct {
	TargetPath string `json:"target_path" example:"/Dokumenty/2016"`
}

// @Summary      Move an entry
// @Description  Moves the remote object into another directory and updates the mirror. A relative target path is resolved against the session's current directory.
// @Tags         files
// @Accept       json
// @Security     BearerAuth
// @Param        entryId      path      string            true  "Entry ID"
// @Param        moveRequest  body      MoveEntryRequest  true  "Target directory"
// @Success      200  {object}  models.Entry
// @Failure      400  {string}  string "Bad Request"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found"
// @Failure      409  {string}  string "An entry with the same name already exists at the target"
// @Failure      502  {string}  string "Remote storage provider unavailable"
// @Router       /files/{entryId}/move [post]
func (s *Server) MoveEntryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())
	entryID := chi.URLParam(r, "entryId")

	var req MoveEntryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.TargetPath) == "" {
		http.Error(w, "Target path is required", http.StatusBadRequest)
		return
	}

	entry, err := s.store.GetEntryByID(r.Context(), entryID)
	if err != nil {
		http.Error(w, "Failed to retrieve entry", http.StatusInternalServerError)
		return
	}
	if entry == nil || !entry.Visible {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	targetPath := resolvePath(session.CurrentPath, req.TargetPath)
	if targetPath == entry.Path {
		http.Error(w, "Entry is already at the target path", http.StatusBadRequest)
		return
	}

	err = s.provider.FileMove(r.Context(), session.APIToken,
		remotePath(entry.Path, entry.Name),
		remotePath(targetPath, entry.Name),
	)
	if err != nil {
		log.Printf("ERROR: Remote move of %q failed: %v", entry.Name, err)
		http.Error(w, "Remote storage provider unavailable", http.StatusBadGateway)
		return
	}

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		success, err := q.MoveEntry(r.Context(), entryID, targetPath)
		if err != nil {
			return err
		}
		if !success {
			return database.ErrEntryNotFound
		}
		return q.LogEvent(r.Context(), claims.PrincipalID, "entry_moved", map[string]string{
			"id": entryID, "old_path": entry.Path, "new_path": targetPath,
		})
	})
	if txErr != nil {
		if errors.Is(txErr, database.ErrDuplicateEntryName) {
			http.Error(w, "An entry with the same name already exists at the target path", http.StatusConflict)
			return
		}
		if errors.Is(txErr, database.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to move entry", http.StatusInternalServerError)
		return
	}

	entry.Path = targetPath
	s.publishEvent(claims.PrincipalID, "entry_moved", entry)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

// @Summary      Remove an entry
// @Description  Soft-removes an entry from the listing. The remote object is untouched and the mirror row is kept with the visible flag cleared; only reconciliation or a trash purge deletes it.
// @Tags         files
// @Security     BearerAuth
// @Param        entryId  path      string  true  "Entry ID"
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /files/{entryId} [delete]
func (s *Server) RemoveEntryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	entryID := chi.URLParam(r, "entryId")

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		success, err := q.HideEntry(r.Context(), entryID)
		if err != nil {
			return err
		}
		if !success {
			return database.ErrEntryNotFound
		}
		return q.LogEvent(r.Context(), claims.PrincipalID, "entry_removed", map[string]string{"id": entryID})
	})
	if txErr != nil {
		if errors.Is(txErr, database.ErrEntryNotFound) {
			http.Error(w, "Entry not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to remove entry", http.StatusInternalServerError)
		return
	}

	s.publishEvent(claims.PrincipalID, "entry_removed", map[string]string{"id": entryID})

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Get a sharing link
// @Description  Asks the remote storage provider for a public link to the entry.
// @Tags         files
// @Produce      json
// @Security     BearerAuth
// @Param        entryId  path      string  true  "Entry ID"
// @Success      200  {object}  provider.ShareLink
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Entry not found"
// @Failure      502  {string}  string "Remote storage provider unavailable"
// @Router       /files/{entryId}/share [get]
func (s *Server) ShareEntryHandler(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	entryID := chi.URLParam(r, "entryId")

	entry, err := s.store.GetEntryByID(r.Context(), entryID)
	if err != nil {
		http.Error(w, "Failed to retrieve entry", http.StatusInternalServerError)
		return
	}
	if entry == nil || !entry.Visible {
		http.Error(w, "Entry not found", http.StatusNotFound)
		return
	}

	link, err := s.provider.Shares(r.Context(), session.APIToken, remotePath(entry.Path, entry.Name))
	if err != nil {
		log.Printf("ERROR: Share link for %q failed: %v", entry.Name, err)
		http.Error(w, "Remote storage provider unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

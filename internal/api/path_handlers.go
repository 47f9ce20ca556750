package api

import (
	"encoding/json"
	"net/http"

	"archiwum-plikow/internal/database"
)

type PathResponse struct {
	Path string `json:"path" example:"/Dokumenty"`
}

type SetPathRequest struct {
	Path string `json:"path" example:"Dokumenty/2016"`
}

// @Summary      Reset the current directory
// @Description  A safe (read-only) navigation request always resets the session back to the root directory, regardless of any parameters supplied.
// @Tags         navigation
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  PathResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /path [get]
func (s *Server) ResetPathHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := s.store.UpdateSessionPath(r.Context(), claims.SessionID, database.RootPath); err != nil {
		http.Error(w, "Failed to reset path", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PathResponse{Path: database.RootPath})
}

// @Summary      Change the current directory
// @Description  Sets the session's current directory. Relative paths are resolved against the present one. The path scopes all listing, upload, rename, move and remove operations until changed again.
// @Tags         navigation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        setPathRequest  body      SetPathRequest  true  "Target directory"
// @Success      200  {object}  PathResponse
// @Failure      400  {string}  string "Invalid request body"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /path [post]
func (s *Server) SetPathHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	session := GetSessionFromContext(r.Context())

	var req SetPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	newPath := resolvePath(session.CurrentPath, req.Path)

	if err := s.store.UpdateSessionPath(r.Context(), claims.SessionID, newPath); err != nil {
		http.Error(w, "Failed to set path", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(PathResponse{Path: newPath})
}

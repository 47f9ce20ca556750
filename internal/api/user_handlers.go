package api

import (
	"encoding/json"
	"log"
	"net/http"

	"archiwum-plikow/internal/models"
)

type CurrentUserResponse struct {
	models.Principal
	AvatarURL string `json:"avatar_url,omitempty" example:"https://cdn.example.org/photos/1.jpg"`
}

// @Summary      Get current user info
// @Description  Retrieves the profile of the currently authenticated member, with the avatar URL served from the per-principal cache when warm.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CurrentUserResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "Principal not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	principal, err := s.store.GetPrincipalByID(r.Context(), claims.PrincipalID)
	if err != nil {
		http.Error(w, "Failed to retrieve principal", http.StatusInternalServerError)
		return
	}
	if principal == nil {
		http.Error(w, "Principal not found", http.StatusNotFound)
		return
	}

	response := CurrentUserResponse{Principal: *principal}

	cached, found, err := s.avatars.Get(r.Context(), principal.ID)
	if err != nil {
		log.Printf("WARN: Avatar cache lookup failed for principal %d: %v", principal.ID, err)
	}
	if found {
		response.AvatarURL = cached
	} else if principal.AvatarURL != nil {
		response.AvatarURL = *principal.AvatarURL
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

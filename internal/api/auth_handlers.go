package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"archiwum-plikow/internal/auth"
	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/identity"
	"archiwum-plikow/internal/models"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
)

type LoginRequest struct {
	Email    string `json:"email" example:"vivianec@gmail.com"`
	Password string `json:"password" example:"password123"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9...."`
	RefreshToken string `json:"refresh_token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
}

// @Summary      Logs a member in
// @Description  Exchanges the member's identity-provider credentials for a short-lived access token and a long-lived refresh token. Membership in the configured organizational unit is verified against the member directory.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Login Credentials"
// @Success      200            {object}  TokenResponse
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid email or password"
// @Failure      403            {string}  string "Member belongs to another organizational unit"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.identity.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		log.Printf("ERROR: Identity provider unreachable: %v", err)
		http.Error(w, "Identity provider unavailable", http.StatusBadGateway)
		return
	}

	profile, err := s.identity.CurrentPerson(r.Context(), token)
	if err != nil {
		log.Printf("ERROR: Failed to fetch member profile: %v", err)
		http.Error(w, "Failed to verify membership", http.StatusBadGateway)
		return
	}

	if profile.Person.HomeMC.ID != s.config.Identity.AllowedUnitID {
		http.Error(w, "Your account belongs to another organizational unit", http.StatusForbidden)
		return
	}

	principal, err := s.resolvePrincipal(r.Context(), profile)
	if err != nil {
		log.Printf("ERROR: Failed to resolve principal for %s: %v", profile.Person.Email, err)
		http.Error(w, "Failed to process login", http.StatusInternalServerError)
		return
	}

	generateID, err := nanoid.Standard(40)
	if err != nil {
		log.Printf("CRITICAL: Failed to initialize nanoid generator: %v", err)
		http.Error(w, "Internal server error (token generation)", http.StatusInternalServerError)
		return
	}
	refreshToken := generateID()
	sessionID := uuid.New()

	sessionParams := database.CreateSessionParams{
		ID:           sessionID,
		PrincipalID:  principal.ID,
		APIToken:     token,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     r.RemoteAddr,
		ExpiresAt:    time.Now().Add(24 * time.Hour),
	}

	if err := s.store.CreateSession(r.Context(), sessionParams); err != nil {
		log.Printf("ERROR: Failed to create session for principal %d: %v", principal.ID, err)
		http.Error(w, "Failed to process login session", http.StatusInternalServerError)
		return
	}

	accessToken, err := auth.GenerateJWT(principal, sessionID, s.config.JWT.Secret)
	if err != nil {
		http.Error(w, "Failed to generate access token", http.StatusInternalServerError)
		return
	}

	// Best effort; a cold avatar cache only costs an extra directory call.
	if err := s.avatars.Refresh(r.Context(), principal.ID, profile.Person.ProfilePhotoURL); err != nil {
		log.Printf("WARN: Failed to refresh avatar cache for principal %d: %v", principal.ID, err)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
}

// resolvePrincipal finds the local record for a member-directory profile,
// creating it on first login and refreshing the copied fields otherwise.
func (s *Server) resolvePrincipal(ctx context.Context, profile *identity.Profile) (*models.Principal, error) {
	var principal *models.Principal

	var avatarURL *string
	if profile.Person.ProfilePhotoURL != "" {
		avatarURL = &profile.Person.ProfilePhotoURL
	}
	var group *string
	if profile.CurrentPosition.Team.TeamType != "" {
		group = &profile.CurrentPosition.Team.TeamType
	}

	txErr := s.store.ExecTx(ctx, func(q *database.Queries) error {
		existing, err := q.GetPrincipalByEmail(ctx, profile.Person.Email)
		if err != nil {
			return err
		}

		if existing == nil {
			principal, err = q.CreatePrincipal(ctx, database.CreatePrincipalParams{
				DisplayName:      profile.Person.FullName,
				Email:            profile.Person.Email,
				AvatarURL:        avatarURL,
				GroupAffiliation: group,
			})
			return err
		}

		if err := q.UpdatePrincipalProfile(ctx, existing.ID, profile.Person.FullName, avatarURL, group); err != nil {
			return err
		}
		existing.DisplayName = profile.Person.FullName
		existing.AvatarURL = avatarURL
		existing.GroupAffiliation = group
		principal = existing
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return principal, nil
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
}

// @Summary      Refresh access token
// @Description  Provides a new short-lived access token and a new refresh token in exchange for a valid, non-expired refresh token. Implements refresh token rotation; the upstream API token and the current navigation path carry over.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      200                   {object}  TokenResponse
// @Failure      400                   {string}  string "Invalid request body or missing token"
// @Failure      401                   {string}  string "Invalid or expired refresh token"
// @Failure      500                   {string}  string "Internal Server Error"
// @Router       /auth/refresh [post]
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		http.Error(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	var newAccessToken, newRefreshToken string

	txErr := s.store.ExecTx(r.Context(), func(q *database.Queries) error {
		session, err := q.GetSessionByRefreshToken(r.Context(), req.RefreshToken)
		if err != nil {
			return err
		}
		if session == nil {
			return errors.New("invalid or expired refresh token")
		}

		principal, err := q.GetPrincipalByID(r.Context(), session.PrincipalID)
		if err != nil {
			return err
		}
		if principal == nil {
			return errors.New("invalid or expired refresh token")
		}

		if err := q.DeleteSessionByRefreshToken(r.Context(), req.RefreshToken); err != nil {
			return err
		}

		generateID, _ := nanoid.Standard(40)
		newRefreshToken = generateID()
		newSessionID := uuid.New()

		sessionParams := database.CreateSessionParams{
			ID:           newSessionID,
			PrincipalID:  session.PrincipalID,
			APIToken:     session.APIToken,
			RefreshToken: newRefreshToken,
			UserAgent:    r.UserAgent(),
			ClientIP:     r.RemoteAddr,
			ExpiresAt:    time.Now().Add(24 * time.Hour),
		}
		if err := q.CreateSession(r.Context(), sessionParams); err != nil {
			return err
		}

		// Rotation must not lose the directory the client was browsing.
		if session.CurrentPath != database.RootPath {
			if err := q.UpdateSessionPath(r.Context(), newSessionID, session.CurrentPath); err != nil {
				return err
			}
		}

		newAccessToken, err = auth.GenerateJWT(principal, newSessionID, s.config.JWT.Secret)
		return err
	})

	if txErr != nil {
		if txErr.Error() == "invalid or expired refresh token" {
			http.Error(w, txErr.Error(), http.StatusUnauthorized)
		} else {
			log.Printf("ERROR: Refresh token transaction failed: %v", txErr)
			http.Error(w, "Failed to refresh token", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TokenResponse{
		AccessToken:  newAccessToken,
		RefreshToken: newRefreshToken,
	})
}

// @Summary      Log out
// @Description  Terminates the current session. The upstream API token is discarded with it.
// @Tags         auth
// @Security     BearerAuth
// @Success      204  {null}    nil "No Content"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /logout [get]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())

	if err := s.store.DeleteSessionByID(r.Context(), claims.SessionID, claims.PrincipalID); err != nil {
		http.Error(w, "Failed to log out", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

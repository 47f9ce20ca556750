package api

import (
	"context"
	"net/http"
	"strings"

	"archiwum-plikow/internal/auth"
	"archiwum-plikow/internal/models"
)

type contextKey string

const userContextKey = contextKey("user")
const sessionContextKey = contextKey("session")

// AuthMiddleware verifies the bearer token and loads the server-side session
// row it points at. The session carries the upstream API token and the
// current navigation path, so every handler downstream has both without
// touching globals.
func (s *Server) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		headerParts := strings.Split(authHeader, " ")
		if len(headerParts) != 2 || headerParts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		tokenString := headerParts[1]

		claims, err := auth.VerifyJWT(tokenString, s.config.JWT.Secret)
		if err != nil {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		session, err := s.store.GetSessionByID(r.Context(), claims.SessionID)
		if err != nil {
			http.Error(w, "Failed to load session", http.StatusInternalServerError)
			return
		}
		if session == nil {
			http.Error(w, "Session expired or logged out", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, claims)
		ctx = context.WithValue(ctx, sessionContextKey, session)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserFromContext(ctx context.Context) *auth.AppClaims {
	if claims, ok := ctx.Value(userContextKey).(*auth.AppClaims); ok {
		return claims
	}
	return nil
}

func GetSessionFromContext(ctx context.Context) *models.Session {
	if session, ok := ctx.Value(sessionContextKey).(*models.Session); ok {
		return session
	}
	return nil
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strconv"
	"strings"

	"archiwum-plikow/internal/avatar"
	"archiwum-plikow/internal/config"
	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/identity"
	"archiwum-plikow/internal/mirror"
	"archiwum-plikow/internal/provider"
	"archiwum-plikow/internal/websocket"
)

// IdentityBridge is the narrow seam to the external single-sign-on provider,
// so the form-scraping exchange can be swapped or faked in tests.
type IdentityBridge interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
	CurrentPerson(ctx context.Context, token string) (*identity.Profile, error)
}

type Server struct {
	config   *config.Config
	store    *database.Store
	mirror   *mirror.Mirror
	provider *provider.Client
	identity IdentityBridge
	avatars  *avatar.Cache
	wsHub    *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.Store, m *mirror.Mirror, client *provider.Client, bridge IdentityBridge, avatars *avatar.Cache, wsHub *websocket.Hub) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		mirror:   m,
		provider: client,
		identity: bridge,
		avatars:  avatars,
		wsHub:    wsHub,
	}
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func parsePagination(r *http.Request) (int, int) {
	limit := 100
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// resolvePath resolves a navigation or move target against the session's
// current directory. Absolute targets are cleaned, relative ones are joined.
func resolvePath(currentPath, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return database.RootPath
	}
	if !strings.HasPrefix(target, "/") {
		target = path.Join(currentPath, target)
	}
	cleaned := path.Clean(target)
	if !strings.HasPrefix(cleaned, "/") {
		cleaned = "/" + cleaned
	}
	return cleaned
}

func remotePath(dir, name string) string {
	if dir == database.RootPath {
		return "/" + name
	}
	return dir + "/" + name
}

func (s *Server) publishEvent(principalID int64, eventType string, payload interface{}) {
	eventMsg := map[string]interface{}{"event_type": eventType, "payload": payload}
	eventBytes, _ := json.Marshal(eventMsg)
	s.wsHub.PublishEvent(principalID, eventBytes)
}

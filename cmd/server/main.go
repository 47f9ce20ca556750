// @title           Archiwum Plików API
// @version         1.0
// @host            localhost
// @schemes         http https
// @BasePath        /api/v1
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"log"
	"net/http"

	"archiwum-plikow/internal/api"
	"archiwum-plikow/internal/avatar"
	"archiwum-plikow/internal/config"
	"archiwum-plikow/internal/database"
	"archiwum-plikow/internal/identity"
	"archiwum-plikow/internal/mirror"
	"archiwum-plikow/internal/provider"
	"archiwum-plikow/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	httpSwagger "github.com/swaggo/http-swagger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Nie można wczytać konfiguracji: %v", err)
	}

	if err := database.RunMigrations(context.Background(), cfg.DB.Source); err != nil {
		log.Fatalf("Nie można wykonać migracji: %v", err)
	}

	dbpool, err := pgxpool.New(context.Background(), cfg.DB.Source)
	if err != nil {
		log.Fatalf("Nie można połączyć się z bazą danych: %v", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(context.Background()); err != nil {
		log.Fatalf("Nie można pingować bazy danych: %v", err)
	}
	log.Println("Pomyślnie połączono z bazą danych")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Nie można połączyć się z Redis: %v", err)
	}
	defer rdb.Close()

	store := database.NewStore(dbpool)
	storageClient := provider.NewClient(cfg.Provider.BaseURL)

	fileMirror, err := mirror.New(store, storageClient)
	if err != nil {
		log.Fatalf("Nie można zainicjować mirrora metadanych: %v", err)
	}

	bridge := identity.NewBridge(cfg.Identity.LoginURL, cfg.Identity.ProfileURL, cfg.Identity.TokenCookie)
	avatars := avatar.NewCache(rdb)

	wsHub := websocket.NewHub()
	go wsHub.Run()

	server := api.NewServer(cfg, store, fileMirror, storageClient, bridge, avatars, wsHub)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(api.MetricsMiddleware)

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("https://localhost/swagger/doc.json"),
	))

	r.Get("/ws", server.ServeWsHandler)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Archiwum plików działa! Dokumentacja dostępna pod /swagger/index.html"))
	})

	r.Post("/api/v1/auth/login", server.LoginHandler)
	r.Post("/api/v1/auth/refresh", server.RefreshTokenHandler)

	r.Get("/health", server.HealthCheckHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(server.AuthMiddleware)
		r.Get("/me", server.GetCurrentUserHandler)
		r.Get("/logout", server.LogoutHandler)
		r.Get("/files", server.ListEntriesHandler)
		r.Post("/files", server.UploadEntryHandler)
		r.Post("/files/{entryId}/rename", server.RenameEntryHandler)
		r.Post("/files/{entryId}/move", server.MoveEntryHandler)
		r.Delete("/files/{entryId}", server.RemoveEntryHandler)
		r.Get("/files/{entryId}/share", server.ShareEntryHandler)
		r.Get("/refresh", server.RefreshHandler)
		r.Get("/path", server.ResetPathHandler)
		r.Post("/path", server.SetPathHandler)
		r.Get("/trash", server.ListTrashHandler)
		r.Post("/trash/{entryId}/restore", server.RestoreEntryHandler)
		r.Delete("/trash/purge", server.PurgeTrashHandler)
		r.Get("/sessions", server.ListSessionsHandler)
		r.Delete("/sessions/{sessionId}", server.DeleteSessionHandler)
		r.Post("/sessions/terminate_all", server.TerminateAllSessionsHandler)
		r.Get("/events", server.GetEventsHandler)
	})

	log.Println("Uruchamianie serwera na porcie :8080")
	if err := http.ListenAndServe(":8080", r); err != nil {
		log.Fatalf("Nie można uruchomić serwera: %v", err)
	}
}

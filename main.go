package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"coparent/backend/config"
	"coparent/backend/database"
	"coparent/backend/events"
	"coparent/backend/handlers"
	"coparent/backend/middleware"
	"coparent/backend/migrations"
	"coparent/backend/security"
	"coparent/backend/services"
	"coparent/backend/storage"

	firebase "firebase.google.com/go/v4"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	setupLogger(cfg)

	if cfg.IsDevelopment() {
		log.Info().Msg("Running in development environment")
	}

	if cfg.EncryptionKey == "" {
		log.Warn().Msg("ENCRYPTION_KEY not set, national numbers cannot be stored")
	}
	security.InitializeEncryption(cfg.EncryptionKey)

	if err := database.InitDB(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer database.DB.Close()

	log.Info().Msg("Running migrations...")
	if err := migrations.RunMigrations(database.DB); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}
	if cfg.IsDevelopment() {
		if err := migrations.SeedDevData(database.DB); err != nil {
			log.Warn().Err(err).Msg("Failed to seed development data")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := middleware.InitializeFirebase(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Firebase")
	}
	if app == nil && cfg.IsDevelopment() {
		log.Warn().Msgf("Auth token verification disabled, acting user taken from %s", middleware.DevUserHeader)
		middleware.DevAuth = true
	}

	store, err := attachmentStore(ctx, cfg, app)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize attachment storage")
	}
	services.Attachments = store

	if cfg.AMQPURL != "" {
		publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to AMQP broker")
		}
		defer publisher.Close()
		services.Events = publisher
		log.Info().Str("exchange", cfg.AMQPExchange).Msg("Publishing ledger events to AMQP")
	}

	handlers.Configure(cfg)

	r := mux.NewRouter()
	// Register routes with both direct paths and /api prefix
	handlers.RegisterRoutes(r)
	handlers.RegisterRoutes(r.PathPrefix("/api").Subrouter())
	serveFrontend(r, cfg.StaticDir)

	// CORS wraps the router so preflight requests never reach route matching
	handler := middleware.Logging(log.Logger)(middleware.CORS(cfg.CORSAllowedOrigins, cfg.IsDevelopment())(r))

	srv := &http.Server{
		Handler:      handler,
		Addr:         ":" + cfg.Port,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  30 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.IsDevelopment() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

// attachmentStore uses the Firebase bucket when one is configured and the
// local upload directory otherwise.
func attachmentStore(ctx context.Context, cfg *config.Config, app *firebase.App) (storage.Store, error) {
	if app != nil && cfg.FirebaseStorageBucket != "" {
		log.Info().Str("bucket", cfg.FirebaseStorageBucket).Msg("Storing attachments in Firebase Storage")
		return storage.NewFirebaseStore(ctx, app, cfg.FirebaseStorageBucket)
	}
	log.Info().Str("dir", cfg.UploadDir).Msg("Storing attachments on local disk")
	return storage.NewLocalStore(cfg.UploadDir)
}

// serveFrontend serves the built single-page app, falling back to
// index.html for client-side routes.
func serveFrontend(r *mux.Router, dir string) {
	index := filepath.Join(dir, "index.html")
	if _, err := os.Stat(index); err != nil {
		log.Debug().Str("dir", dir).Msg("No frontend build found, serving API only")
		return
	}
	r.PathPrefix("/assets/").Handler(http.FileServer(http.Dir(dir)))
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, index)
	}).Methods("GET")
}

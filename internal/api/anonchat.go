package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/anon-chat/internal/config"
	"github.com/npezzotti/anon-chat/internal/database"
	"github.com/npezzotti/anon-chat/internal/presence"
	"github.com/npezzotti/anon-chat/internal/stats"
	"github.com/npezzotti/anon-chat/internal/uploads"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type AnonChatApp struct {
	log        zerolog.Logger
	db         database.ChatRepository
	files      *uploads.Store
	presence   *presence.Tracker
	stats      stats.StatsProvider
	limiter    *clientLimiter
	mux        *http.Server
	signingKey []byte
	now        func() time.Time

	maxUploadBytes int64

	adminUsername     string
	adminPasswordHash []byte
}

func NewAnonChatApp(mux *http.ServeMux, logger zerolog.Logger, db database.ChatRepository, files *uploads.Store, tracker *presence.Tracker, su stats.StatsProvider, cfg *config.Config) *AnonChatApp {
	s := &AnonChatApp{
		log:           logger.With().Str("component", "api").Logger(),
		db:            db,
		files:         files,
		presence:      tracker,
		stats:         su,
		limiter:       newClientLimiter(cfg.RateLimit, cfg.RateBurst),
		signingKey:    cfg.SigningKey,
		now:           time.Now,

		maxUploadBytes: cfg.MaxUploadBytes,
		adminUsername:  cfg.AdminUsername,
	}

	if cfg.AdminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			s.log.Error().Err(err).Msg("hash admin password, admin login disabled")
		}
		s.adminPasswordHash = hash
	}

	mux.HandleFunc("GET /healthz", s.healthCheck)
	mux.HandleFunc("GET /api/get_rooms", s.getRooms)
	mux.HandleFunc("GET /api/get_online_users/{roomId}", s.getOnlineUsers)
	mux.HandleFunc("GET /api/get_messages/{roomId}", s.getMessages)
	mux.HandleFunc("POST /api/send_message", s.rateLimit(s.sendMessage))
	mux.HandleFunc("POST /api/upload_file", s.rateLimit(s.uploadFile))
	mux.HandleFunc("POST /api/verify_room_password", s.rateLimit(s.verifyRoomPassword))
	mux.HandleFunc("POST /api/admin_login", s.rateLimit(s.adminLogin))
	mux.HandleFunc("POST /api/admin_logout", s.adminLogout)
	mux.HandleFunc("POST /api/create_room", s.authMiddleware(s.createRoom))
	mux.HandleFunc("POST /api/update_room", s.authMiddleware(s.updateRoom))
	mux.HandleFunc("POST /api/delete_room", s.authMiddleware(s.deleteRoom))
	if files != nil {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", s.serveUploads(files.Dir())))
	}

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	if cfg.TrustProxy {
		h = handlers.ProxyHeaders(h)
	}
	h = s.errorHandler(h)

	s.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return s
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *AnonChatApp) Handler() http.Handler {
	return s.mux.Handler
}

func (s *AnonChatApp) Start() error {
	s.log.Info().Str("addr", s.mux.Addr).Msg("starting server")
	return s.mux.ListenAndServe()
}

func (s *AnonChatApp) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

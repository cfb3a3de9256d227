package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/mfdeleon/go-privchat/internal/config"
	"github.com/mfdeleon/go-privchat/internal/database"
	"github.com/mfdeleon/go-privchat/internal/mail"
	"github.com/mfdeleon/go-privchat/internal/relay"
)

type PrivChatApp struct {
	log            *log.Logger
	db             database.PrivChatRepository
	mux            *http.Server
	rs             *relay.RelayServer
	mailer         mail.Mailer
	signingKey     []byte
	allowedOrigins []string
	uploadDir      string
	otpExpiration  time.Duration

	generateShortId func() (string, error)
}

func NewPrivChatApp(mux *http.ServeMux, logger *log.Logger, rs *relay.RelayServer,
	db database.PrivChatRepository, mailer mail.Mailer, cfg *config.Config) *PrivChatApp {
	s := &PrivChatApp{
		log:             logger,
		db:              db,
		rs:              rs,
		mailer:          mailer,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		uploadDir:       cfg.UploadDir,
		otpExpiration:   cfg.OTPExpiration,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/signup", s.signup)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("POST /api/auth/verify-otp", s.verifyOTP)
	mux.HandleFunc("POST /api/auth/resend-otp", s.resendOTP)
	mux.Handle("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("POST /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("GET /api/users", s.authMiddleware(s.listUsers))
	mux.Handle("GET /api/profile", s.authMiddleware(s.getProfile))
	mux.Handle("PUT /api/profile", s.authMiddleware(s.updateProfile))
	// The relay persists through this route from its own process, with
	// no browser session to forward.
	mux.HandleFunc("POST /api/messages", s.createMessage)
	mux.Handle("GET /api/messages", s.authMiddleware(s.getConversation))
	mux.Handle("POST /api/upload", s.authMiddleware(s.upload))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir))))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PrivChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PrivChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

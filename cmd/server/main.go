package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/mfdeleon/go-privchat/internal/api"
	"github.com/mfdeleon/go-privchat/internal/config"
	"github.com/mfdeleon/go-privchat/internal/database"
	"github.com/mfdeleon/go-privchat/internal/mail"
	"github.com/mfdeleon/go-privchat/internal/relay"
	"github.com/mfdeleon/go-privchat/internal/stats"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

var (
	addr           string
	dsn            string
	signingKey     string
	uploadDir      string
	allowedOrigins stringSliceFlag
	otpExpiration  time.Duration
	smtpHost       string
	smtpPort       int
	smtpUsername   string
	smtpPassword   string
	smtpFrom       string
)

func main() {
	// .env is optional, flags and real env win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("load .env:", err)
	}

	flag.StringVar(&addr, "addr", envOr("PRIVCHAT_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("PRIVCHAT_DSN", "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.StringVar(&signingKey, "signing-key", envOr("PRIVCHAT_SIGNING_KEY", defaultSigningKey), "base64 encoded signing key")
	flag.StringVar(&uploadDir, "upload-dir", envOr("PRIVCHAT_UPLOAD_DIR", "uploads"), "directory for uploaded files")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.DurationVar(&otpExpiration, "otp-expiration", 0, "how long a one-time code stays valid")
	flag.StringVar(&smtpHost, "smtp-host", envOr("PRIVCHAT_SMTP_HOST", ""), "SMTP host for verification mail (log codes when empty)")
	flag.IntVar(&smtpPort, "smtp-port", envIntOr("PRIVCHAT_SMTP_PORT", 587), "SMTP port")
	flag.StringVar(&smtpUsername, "smtp-username", envOr("PRIVCHAT_SMTP_USERNAME", ""), "SMTP username")
	flag.StringVar(&smtpPassword, "smtp-password", envOr("PRIVCHAT_SMTP_PASSWORD", ""), "SMTP password")
	flag.StringVar(&smtpFrom, "smtp-from", envOr("PRIVCHAT_SMTP_FROM", "no-reply@privchat.local"), "From address for verification mail")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		if origins := os.Getenv("PRIVCHAT_ALLOWED_ORIGINS"); origins != "" {
			allowedOrigins.Set(origins)
		}
	}

	logger := log.New(os.Stderr, "[privchat] ", log.LstdFlags)

	smtpCfg := config.SMTPConfig{
		Host:     smtpHost,
		Port:     smtpPort,
		Username: smtpUsername,
		Password: smtpPassword,
		From:     smtpFrom,
	}

	cfg, err := config.NewConfig(addr, dsn, signingKey, uploadDir, allowedOrigins, smtpCfg, otpExpiration)
	if err != nil {
		logger.Fatal("config:", err)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		logger.Fatal("create upload dir:", err)
	}

	dbConn, err := database.NewPgPrivChatRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("db migrate:", err)
	}

	var mailer mail.Mailer
	if cfg.SMTP.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Println("no SMTP host configured, one-time codes will be logged")
		mailer = mail.NewLogMailer(logger)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	store := relay.NewHTTPMessageStore("http://"+cfg.ServerAddr, 0)

	relayServer, err := relay.NewRelayServer(logger, relay.NewPresence(), store, statsUpdater)
	if err != nil {
		logger.Fatal("new relay server:", err)
	}

	srv := api.NewPrivChatApp(mux, logger, relayServer, dbConn, mailer, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go relayServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay server...")
	if err := relayServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("relay server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

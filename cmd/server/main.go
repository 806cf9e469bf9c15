package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"

	pkgdb "github.com/avdeyev/identity-service/pkg/db"
	"github.com/avdeyev/identity-service/pkg/logging"
	loggingmw "github.com/avdeyev/identity-service/pkg/middleware/logging"

	"github.com/avdeyev/identity-service/internal/config"
	"github.com/avdeyev/identity-service/internal/events"
	"github.com/avdeyev/identity-service/internal/httpserver"
	"github.com/avdeyev/identity-service/internal/mail"
	"github.com/avdeyev/identity-service/internal/realtime"
	"github.com/avdeyev/identity-service/internal/repo"
	"github.com/avdeyev/identity-service/internal/search"
	"github.com/avdeyev/identity-service/internal/service"
	"github.com/avdeyev/identity-service/internal/tokens"
)

func main() {
	cfg := config.Load()
	cfg.MustValidate()

	logger := logging.New(cfg.LogLevel)

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second
	e.Use(loggingmw.RequestLogger(logger))

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	db, err := pkgdb.Open(initCtx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}

	gormRepo := &repo.GormRepo{DB: db}
	if err := gormRepo.Migrate(); err != nil {
		log.Fatalf("db migrate error: %v", err)
	}

	tokenSvc := &tokens.Service{Secret: cfg.SecretKey}

	var mailer mail.Mailer
	if cfg.SMTPAddr != "" {
		mailer = &mail.SMTPMailer{
			Addr:         cfg.SMTPAddr,
			From:         cfg.SMTPFrom,
			User:         cfg.SMTPUser,
			Password:     cfg.SMTPPassword,
			ResetURLBase: cfg.ResetURLBase,
		}
	} else {
		logger.Warn("SMTP_ADDR not set, mail goes to the log")
		mailer = &mail.LogMailer{Log: logger}
	}

	producer := events.NewProducer(cfg.KafkaBrokers)
	defer producer.Close()

	var indexer *search.Indexer
	if cfg.ESURL != "" {
		es, err := search.NewClient(cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			log.Fatalf("es init error: %v", err)
		}
		indexer = &search.Indexer{ES: es, Index: search.DefaultIndex}
	}

	accountSvc := &service.AccountService{
		Repo:   gormRepo,
		Tokens: tokenSvc,
		Mailer: mailer,
		Events: producer,
		Search: indexer,
	}

	httpserver.Register(e, &httpserver.Deps{
		Users: &httpserver.UserHTTP{
			Svc:       accountSvc,
			Search:    indexer,
			UploadDir: cfg.UploadDir,
		},
		Tokens:    tokenSvc,
		Realtime:  realtime.NewHub(logger),
		UploadDir: cfg.UploadDir,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.ServerPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("echo shutdown: %v", err)
	}
}

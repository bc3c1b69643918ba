package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	supportchat "github.com/MegaGrindStone/support-chat"
	"github.com/MegaGrindStone/support-chat/internal/handlers"
	"github.com/MegaGrindStone/support-chat/internal/services"
)

type store interface {
	handlers.Store
	feedbackLister
	io.Closer
}

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "supportchat")

	cfgFilePath := flag.String("config", filepath.Join(cfgPath, "config.yaml"), "path of the config file")
	exportFeedbackOnly := flag.Bool("export-feedback", false, "print the stored feedback as JSON lines and exit")
	flag.Parse()

	cfg, err := loadConfig(*cfgFilePath)
	if err != nil {
		log.Fatal(err)
	}

	logHandler, err := cfg.Log.handler(os.Stderr)
	if err != nil {
		log.Fatal(err)
	}
	logger := slog.New(logHandler)

	st, err := openStore(cfg.Store, cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	if *exportFeedbackOnly {
		if err := exportFeedback(context.Background(), st, os.Stdout); err != nil {
			logger.Error("Failed to export feedback", slog.String("err", err.Error()))
			_ = st.Close()
			os.Exit(1)
		}
		return
	}

	llm, err := cfg.LLM.llm(cfg.SystemPrompt, logger)
	if err != nil {
		log.Fatal(fmt.Errorf("error creating llm: %w", err))
	}
	var titleGen handlers.TitleGenerator
	if cfg.TitleGeneratorPrompt != "" {
		titleGen, err = cfg.LLM.titleGen(cfg.TitleGeneratorPrompt, logger)
		if err != nil {
			log.Fatal(fmt.Errorf("error creating title generator: %w", err))
		}
	}

	revoker, closeRevoker, err := openRevoker(cfg.Sessions)
	if err != nil {
		log.Fatal(err)
	}
	defer closeRevoker()

	m, err := handlers.NewMain(llm, st, handlers.Config{
		TitleGenerator:     titleGen,
		Revoker:            revoker,
		Secret:             cfg.Auth.Secret,
		TokenTTL:           cfg.Auth.TokenTTL,
		AllowAnonymousChat: !cfg.Chat.requireAuth(),
		AssistantMarkup:    cfg.Render.Assistant,
	}, logger)
	if err != nil {
		log.Fatal(err)
	}

	// Serve static files
	staticFS, err := fs.Sub(supportchat.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	m.Register(mux)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port), slog.String("store", cfg.Store.Driver))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		logger.Error("Server error", slog.String("err", err.Error()))

	case sig := <-shutdown:
		logger.Info("Start shutdown", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			if err := srv.Close(); err != nil {
				logger.Error("Forcing server close", slog.String("err", err.Error()))
			}
		}
	}
}

// openStore opens the configured store. A bolt store without a path lives in the config directory.
func openStore(cfg storeConfig, cfgPath string) (store, error) {
	switch cfg.Driver {
	case "sqlite", "mysql":
		s, err := services.NewSQLStore(cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("error opening %s store: %w", cfg.Driver, err)
		}
		return s, nil
	default:
		path := cfg.Path
		if path == "" {
			if err := os.MkdirAll(cfgPath, 0755); err != nil {
				return nil, fmt.Errorf("error creating config directory: %w", err)
			}
			path = filepath.Join(cfgPath, "store.db")
		}
		s, err := services.NewBoltDB(path)
		if err != nil {
			return nil, fmt.Errorf("error opening bolt store: %w", err)
		}
		return s, nil
	}
}

func openRevoker(cfg sessionsConfig) (handlers.Revoker, func(), error) {
	if cfg.RedisAddr == "" {
		return services.NewMemoryRevoker(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := services.NewRedisRevoker(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, fmt.Errorf("error connecting to redis: %w", err)
	}
	return r, func() { _ = r.Close() }, nil
}

// Package main is the entry point of the application
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/arena-server/internal/auth"
	"github.com/tecu23/arena-server/pkg/config"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/rules"
	"github.com/tecu23/arena-server/pkg/server"
)

// App encapsulates global dependencies
type application struct {
	Auth      *auth.APIKeyAuth
	Logger    *zap.Logger
	Config    *config.Config
	Publisher *events.Publisher
	Registry  *manager.Registry
	Hub       *server.Hub
	Server    *http.Server

	upgrader  websocket.Upgrader
	StartTime time.Time
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "8080", "server port")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger := initLogger(*debug)
		logger.Fatal("loading config error", zap.Error(err))
	}

	// flags win over the environment when given explicitly
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			cfg.Debug = *debug
		case "port":
			cfg.Port = *port
		}
	})

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	app := newApplication(cfg, logger)

	go app.Hub.Run()

	err = app.serve()
	if err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

func newApplication(cfg *config.Config, logger *zap.Logger) *application {
	// Initialize event publisher
	publisher := events.NewPublisher()
	publisher.SubscribeAll(func(e events.Event) {
		logger.Debug("event",
			zap.String("type", string(e.Type)),
			zap.String("session_id", e.SessionID),
			zap.Any("payload", e.Payload),
		)
	})

	factory := manager.NewSessionFactory(rules.NewChessAdapter, cfg.TickInterval, publisher, logger)
	matchmaker := manager.NewMatchmaker(factory, manager.MatchmakerOptions{
		MaxTimeControl:       cfg.MaxTimeControl,
		UseArrivingAllotment: cfg.MatchUseArrivingAllotment,
	}, logger)
	registry := manager.NewRegistry(matchmaker, publisher, logger)

	if len(cfg.APIKeys) == 0 {
		logger.Warn("no API keys configured, websocket endpoint is open")
	}

	return &application{
		Auth:      auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:    logger,
		Config:    cfg,
		Publisher: publisher,
		Registry:  registry,
		Hub:       server.NewHub(registry, logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(cfg.FrontendOrigin),
		},
		StartTime: time.Now(),
	}
}

func checkOrigin(allowed string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if allowed == "" {
			return true
		}
		return allowed == r.Header.Get("Origin")
	}
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	// Shut down hub, aborting every running session
	if app.Hub != nil {
		app.Hub.Shutdown()
	}

	app.Logger.Info("All components shut down successfully")
}

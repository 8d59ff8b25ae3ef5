package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/sagekit/sagekit/pkg/config"
	"github.com/sagekit/sagekit/pkg/db"
	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/service"
	"github.com/sagekit/sagekit/pkg/transport"
	"github.com/sagekit/sagekit/pkg/utils"
)

// App wires the transport, services, and HTTP surface together. Both the GUI
// and headless entry points boot through it.
type App struct {
	Config    *config.AppConfig
	Logger    *slog.Logger
	Transport *transport.WSTransport
	Assistant *service.AssistantService
	Auth      *service.AuthService
	Server    *Server
}

// BootApp connects to the native host and starts every service and the HTTP
// server. It fails fast: without the host connection the app is useless.
func BootApp(ctx context.Context) (*App, error) {
	utils.InitLogger()
	logger := utils.GetLogger()

	if _, err := config.EnsureDefaultConfig(); err != nil {
		logger.Warn("write default config failed", "error", err)
	}

	cfg, _, err := config.Load()
	if err != nil {
		logger.Warn("load config failed, using defaults", "error", err)
		cfg = &config.AppConfig{}
	}

	tr, err := transport.Dial(ctx, cfg.HostURL())
	if err != nil {
		return nil, errors.Wrapf(err, "connect host %s", cfg.HostURL())
	}

	gdb, err := db.Open("")
	if err != nil {
		tr.Close()
		return nil, err
	}

	emitter := event.NewEmitter(logger)
	store := service.NewConversationStore(emitter)
	assistant := service.NewAssistantService(tr, store, emitter, cfg, logger)
	auth := service.NewAuthService(tr, emitter, db.NewProfileStore(gdb), cfg, logger)

	// An identity change is the trust boundary: every conversation of the
	// previous user is discarded before the new one is announced.
	auth.SetResetHook(assistant.ResetForIdentity)

	assistant.Start(ctx)
	if err := auth.Start(ctx); err != nil {
		logger.Warn("initial identity sync failed", "error", err)
	}

	server := NewServer(cfg, emitter, assistant, auth, logger)
	if err := server.Start(ctx); err != nil {
		assistant.Stop()
		auth.Stop()
		tr.Close()
		return nil, errors.Wrap(err, "start server")
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Transport: tr,
		Assistant: assistant,
		Auth:      auth,
		Server:    server,
	}, nil
}

// Shutdown stops services and drops the host connection. The HTTP server
// shuts down with the context BootApp was given.
func (a *App) Shutdown() {
	a.Assistant.Stop()
	a.Auth.Stop()
	if err := a.Transport.Close(); err != nil {
		a.Logger.Warn("close host transport failed", "error", err)
	}
}

// ServerURL is the base URL of the local HTTP surface.
func (a *App) ServerURL() string {
	return fmt.Sprintf("http://%s:%d", a.Config.Host(), a.Server.Port())
}

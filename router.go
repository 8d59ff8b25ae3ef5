package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagekit/sagekit/pkg/config"
	"github.com/sagekit/sagekit/pkg/event"
	"github.com/sagekit/sagekit/pkg/handler"
	"github.com/sagekit/sagekit/pkg/models"
	"github.com/sagekit/sagekit/pkg/service"
)

// Server is the local HTTP surface the webview talks to: REST for commands
// and queries, a websocket for event notifications.
type Server struct {
	ginEngine *gin.Engine
	logger    *slog.Logger
	cfg       *config.AppConfig

	assistant *service.AssistantService
	auth      *service.AuthService
	events    *event.WSHandler

	port int
}

func NewServer(cfg *config.AppConfig, emitter *event.Emitter, assistant *service.AssistantService, auth *service.AuthService, logger *slog.Logger) *Server {
	ginEngine := gin.New()
	ginEngine.Use(gin.Recovery())

	// CORS middleware: allow Wails origins (wails://localhost:*) and common localhost origins.
	// Note: if you don't need cookies/credentials, keep Allow-Credentials off.
	ginEngine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		// If there's no Origin header, it's not a browser CORS request.
		if origin != "" {
			allowed := false

			// Allow Wails scheme.
			if strings.HasPrefix(origin, "wails://localhost") || strings.HasPrefix(origin, "wails://127.0.0.1") {
				allowed = true
			}

			// Allow typical localhost dev origins.
			if strings.HasPrefix(origin, "http://localhost") ||
				strings.HasPrefix(origin, "http://127.0.0.1") ||
				strings.HasPrefix(origin, "https://localhost") ||
				strings.HasPrefix(origin, "https://127.0.0.1") {
				allowed = true
			}

			if allowed {
				// Must echo the Origin when Origin is a custom scheme (like wails://) to satisfy browsers.
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
			} else {
				// Reject unknown origins.
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	attachStatic(ginEngine)

	server := &Server{
		ginEngine: ginEngine,
		logger:    logger,
		cfg:       cfg,
		assistant: assistant,
		auth:      auth,
		events:    event.NewWSHandler(emitter, logger),
	}

	server.SetupRoutes()

	return server
}

// Start binds the configured port and serves until ctx is cancelled. Binding
// happens synchronously so port conflicts surface to the caller; serving does
// not block.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host(), s.cfg.Port())
	srv := &http.Server{Addr: addr, Handler: s.ginEngine}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	// Record the actual port (useful if we ever switch to :0).
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		s.port = tcpAddr.Port
	} else {
		s.port = s.cfg.Port()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(ln)
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	// Non-blocking: if startup fails immediately return error; otherwise return nil to let main continue
	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	default:
	}

	s.logger.Info("server listening", "addr", addr)
	return nil
}

// Port returns the port actually bound, 0 before Start.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) SetupRoutes() {
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ready": s.assistant.Ready()})
	})

	// API group
	// /api
	apiGroup := s.ginEngine.Group("/api")

	// Runtime info (for GUI/wails:// and headless clients to discover correct base URLs)
	apiGroup.GET("/runtime", func(c *gin.Context) {
		// Default to localhost because the backend is bound locally.
		host := "127.0.0.1"
		port := s.port
		if port == 0 {
			port = s.cfg.Port()
		}

		c.JSON(http.StatusOK, models.RuntimeInfo{
			HTTPBaseURL: fmt.Sprintf("http://%s:%d", host, port),
			WSBaseURL:   fmt.Sprintf("ws://%s:%d", host, port),
			Port:        port,
		})
	})

	// Event notification websocket
	// /api/events/ws?events=conversation.upserted,...
	apiGroup.GET("/events/ws", s.events.Handle)

	// Versioned REST API
	// /api/v1
	v1 := apiGroup.Group("/v1")
	handler.NewAssistantHandler(s.assistant).RegisterRoutes(v1)
	handler.NewAuthHandler(s.auth).RegisterRoutes(v1)
}

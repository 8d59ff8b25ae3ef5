//go:build !headless

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/wailsapp/wails/v3/pkg/application"
)

// resolveFrontendURL decides what URL the webview should load.
//
// In Wails dev mode, a Vite dev server is started. For hot reload to work,
// the webview must load the Vite server URL, not the Go backend URL.
func resolveFrontendURL(serverURL string) string {
	// 1) If a full dev server URL is explicitly provided, prefer it.
	for _, k := range []string{"SAGEKIT_DEV_SERVER_URL", "WAILS_DEV_SERVER_URL", "WAILS_FRONTEND_URL"} {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}

	// 2) If Wails provides the Vite port, use it.
	if p := strings.TrimSpace(os.Getenv("WAILS_VITE_PORT")); p != "" {
		return fmt.Sprintf("http://localhost:%s", p)
	}

	// 3) Fallback to the built-in Go server URL (production / non-dev).
	return serverURL
}

func main() {
	// Create the Wails application first to get a lifecycle context, but boot
	// the backend before opening the window to avoid initial load failures.
	app := application.New(application.Options{
		Name:        "sagekit",
		Description: "SageKit - AI assistant companion",
		LogLevel:    slog.LevelDebug,
		Services:    []application.Service{},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
	})

	backend, err := BootApp(app.Context())
	if err != nil {
		fmt.Println("Backend start failed", err)
		os.Exit(1)
	}
	defer backend.Shutdown()

	frontendURL := resolveFrontendURL(backend.ServerURL())

	app.Window.NewWithOptions(application.WebviewWindowOptions{
		Title: "SageKit",
		Mac: application.MacWindow{
			InvisibleTitleBarHeight: 50,
			Backdrop:                application.MacBackdropTranslucent,
			TitleBar:                application.MacTitleBarHiddenInset,
		},
		URL: frontendURL,
	})

	// Run the application. This blocks until the application has been exited.
	if err := app.Run(); err != nil {
		backend.Logger.Error("Failed to run application", "error", err)
		os.Exit(1)
	}
}

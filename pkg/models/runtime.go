package models

// RuntimeInfo tells the webview where the local backend is reachable. Served
// from /api/runtime so wails:// and headless clients discover the bound port.
type RuntimeInfo struct {
	HTTPBaseURL string `json:"http_base_url"`
	WSBaseURL   string `json:"ws_base_url"`
	Port        int    `json:"port"`
}

package http

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/custodia-labs/drive-relay/internal/core/domain"
)

// Health endpoints

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady pings PostgreSQL and, when configured, Redis.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{}
	ready := true

	if s.db != nil {
		checks["database"] = "ok"
		if err := s.db.Ping(ctx); err != nil {
			s.logger.Warn("database ping failed", "error", err)
			checks["database"] = "unavailable"
			ready = false
		}
	}
	if s.redisClient != nil {
		checks["redis"] = "ok"
		if err := s.redisClient.Ping(ctx); err != nil {
			s.logger.Warn("redis ping failed", "error", err)
			checks["redis"] = "unavailable"
			ready = false
		}
	}

	status := http.StatusOK
	state := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "not ready"
	}
	writeJSON(w, status, map[string]any{"status": state, "checks": checks})
}

// handleVersion reports the build version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// OAuth callback

var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Code}}<p><code>{{.Code}}</code></p>{{end}}
</body>
</html>`))

type callbackView struct {
	Title   string
	Message string
	Code    string
}

// handleOAuthCallback completes a /connect started in Telegram.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		writePage(w, http.StatusBadRequest, callbackView{
			Title:   "Authorization cancelled",
			Message: "Google reported: " + providerErr + ". Use /connect in Telegram to try again.",
		})
		return
	}

	code := q.Get("code")
	if code == "" {
		writePage(w, http.StatusBadRequest, callbackView{
			Title:   "Missing code",
			Message: "The authorization response has no code. Use /connect in Telegram to try again.",
		})
		return
	}

	cred, err := s.authService.CompleteWithState(r.Context(), q.Get("state"), code)
	switch {
	case err == nil:
		writePage(w, http.StatusOK, callbackView{
			Title:   "Connected",
			Message: "Google Drive is connected as " + cred.AccountEmail + ". You can return to Telegram.",
		})
	case errors.Is(err, domain.ErrNoPendingAuthorization):
		// The code is still unused; the chat can redeem it by recency.
		writePage(w, http.StatusOK, callbackView{
			Title:   "Almost done",
			Message: "Send this code to the bot in the chat where you used /connect:",
			Code:    code,
		})
	case errors.Is(err, domain.ErrExchangeFailed):
		writePage(w, http.StatusBadRequest, callbackView{
			Title:   "Connection failed",
			Message: "The code may be invalid or expired. Use /connect in Telegram to try again.",
		})
	default:
		s.logger.Error("oauth callback failed", "error", err)
		writePage(w, http.StatusInternalServerError, callbackView{
			Title:   "Something went wrong",
			Message: "Please try /connect again later.",
		})
	}
}

func writePage(w http.ResponseWriter, status int, view callbackView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = callbackPage.Execute(w, view)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package google

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/pysugar/calendar-notice/internal/db/models"
)

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="UTF-8">
	<title>Login Successful</title>
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, sans-serif; max-width: 600px; margin: 50px auto; padding: 20px; background: #1a1a2e; color: #eee; }
		.success { color: #4ade80; }
		code { background: #374151; padding: 2px 6px; border-radius: 4px; color: #fbbf24; }
	</style>
</head>
<body>
	<h1 class="success">Calendar access granted</h1>
	<p><strong>Scope:</strong> <code>{{.Scope}}</code></p>
	<p>You can close this window. Events will sync within the next cycle.</p>
</body>
</html>`))

// HandleCallback exchanges the authorization code and stores a new credential.
func (f *Flow) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if msg := q.Get("error"); msg != "" {
		f.logger.WarnContext(r.Context(), "authorization denied", "error", msg)
		http.Error(w, fmt.Sprintf("Authorization failed: %s", msg), http.StatusBadRequest)
		return
	}
	if !f.validState(q.Get("state")) {
		http.Error(w, "Invalid state token", http.StatusBadRequest)
		return
	}
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}

	tok, err := f.config.Exchange(r.Context(), code)
	if err != nil {
		f.logger.ErrorContext(r.Context(), "token exchange failed", "error", err)
		http.Error(w, fmt.Sprintf("Token exchange failed: %v", err), http.StatusBadGateway)
		return
	}

	now := f.now()
	cred := &models.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if cred.ExpiresIn == 0 && !tok.Expiry.IsZero() {
		cred.ExpiresIn = int64(tok.Expiry.Sub(now) / time.Second)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}

	if err := f.store.Create(r.Context(), cred); err != nil {
		f.logger.ErrorContext(r.Context(), "failed to save credential", "error", err)
		http.Error(w, "Failed to save credential", http.StatusInternalServerError)
		return
	}
	if cred.RefreshToken == "" {
		f.logger.WarnContext(r.Context(), "provider issued no refresh token; re-login will be needed when it expires")
	}
	f.logger.InfoContext(r.Context(), "stored new credential", "credential_id", cred.ID, "expires_in", cred.ExpiresIn)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	successPage.Execute(w, struct{ Scope string }{cred.Scope})
}

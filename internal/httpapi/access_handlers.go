package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"coursegate.dev/internal/access"
	"coursegate.dev/internal/audit"
	"coursegate.dev/internal/ids"
	"coursegate.dev/internal/obs"
	"coursegate.dev/internal/sales"
	"coursegate.dev/internal/store/pg"
	"coursegate.dev/internal/stream"
	"coursegate.dev/internal/verify"
)

type verifyRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyResponse struct {
	Authorized bool       `json:"authorized"`
	Token      string     `json:"token,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type listAttemptsResponse struct {
	Items []pg.Attempt `json:"items"`
	AsOf  time.Time    `json:"as_of"`
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req verifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	// First factor: the shared gate password. No sales API traffic until it
	// checks out.
	if err := access.CheckPassword(a.gate.PasswordHash, req.Password); err != nil {
		a.recordAttempt(r.Context(), email, "bad_password", verify.Result{}, 0)
		_ = audit.LogEvent(r.Context(), "access.verify.bad_password", map[string]any{"email": email})
		writeJSON(w, http.StatusForbidden, verifyResponse{Authorized: false})
		return
	}

	started := time.Now()
	res, err := a.verifier.VerifyPurchase(r.Context(), email)
	elapsed := time.Since(started)

	switch {
	case err == nil && res.Found:
		token, expiresAt, issueErr := a.issuer.Issue(email)
		if issueErr != nil {
			obs.Log("error", "course token issue failed", map[string]any{"error": issueErr.Error()})
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		a.recordAttempt(r.Context(), email, "granted", res, elapsed)
		_ = audit.LogEvent(r.Context(), "access.verify.granted", map[string]any{"email": email})
		writeJSON(w, http.StatusOK, verifyResponse{Authorized: true, Token: token, ExpiresAt: &expiresAt})

	case err == nil:
		a.recordAttempt(r.Context(), email, "not_found", res, elapsed)
		_ = audit.LogEvent(r.Context(), "access.verify.denied", map[string]any{"email": email})
		writeJSON(w, http.StatusForbidden, verifyResponse{Authorized: false})

	case errors.Is(err, verify.ErrIndeterminate):
		// Every window failed: an outage, not a denial.
		a.recordAttempt(r.Context(), email, "indeterminate", res, elapsed)
		_ = audit.LogEvent(r.Context(), "access.verify.indeterminate", map[string]any{"email": email})
		writeError(w, r, http.StatusServiceUnavailable, "verification temporarily unavailable, try again later")

	default:
		// Token exchange or configuration failure. Detail stays in the logs.
		a.recordAttempt(r.Context(), email, "error", res, elapsed)
		obs.Log("error", "purchase verification failed", map[string]any{"error": err.Error()})
		if errors.Is(err, sales.ErrMissingCredentials) {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "verification failed, try again later")
	}
}

func (a *API) handleAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.attempts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "attempt log is not configured")
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.attempts.ListAttempts(r.Context(), limit)
	if err != nil {
		obs.Log("error", "list attempts failed", map[string]any{"error": err.Error()})
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []pg.Attempt{}
	}
	writeJSON(w, http.StatusOK, listAttemptsResponse{Items: items, AsOf: time.Now().UTC()})
}

// Stream handles Server-Sent Events for gate decisions.
func (a *API) Stream(w http.ResponseWriter, r *http.Request) {
	if a.stream == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := a.stream.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for event := range ch {
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}

// recordAttempt persists and publishes one gate decision. Best effort: a
// failing attempt log never blocks the response.
func (a *API) recordAttempt(ctx context.Context, email, outcome string, res verify.Result, elapsed time.Duration) {
	if a.stream != nil {
		a.stream.Publish(stream.AttemptEvent{
			Email:     stream.MaskEmail(email),
			Outcome:   outcome,
			Timestamp: time.Now().UTC(),
		})
	}
	if a.attempts == nil {
		return
	}
	err := a.attempts.RecordAttempt(ctx, pg.Attempt{
		ID:             ids.New(),
		CreatedAt:      time.Now().UTC(),
		Email:          email,
		Outcome:        outcome,
		WindowsQueried: res.WindowsQueried,
		WindowsFailed:  res.WindowsFailed,
		RecordsScanned: res.RecordsScanned,
		DurationMS:     elapsed.Milliseconds(),
	})
	if err != nil {
		obs.Log("warn", "attempt log write failed", map[string]any{"error": err.Error()})
	}
}

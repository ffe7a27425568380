package verify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"coursegate.dev/internal/obs"
	"coursegate.dev/internal/sales"
)

var (
	// ErrMissingEmail is returned before any network call.
	ErrMissingEmail = errors.New("verify: email is required")

	// ErrIndeterminate means every window query failed, so the sweep proves
	// nothing. Deliberately distinct from a clean not-found: a remote outage
	// must not read as "no purchase".
	ErrIndeterminate = errors.New("verify: no sales window could be checked")
)

const paidStatus = "paid"

// The merchant token is short-lived and its response carries no expiry, so
// reuse it only briefly before exchanging again.
const tokenReuse = 5 * time.Minute

// SalesAPI is the slice of the merchant client the verifier needs.
type SalesAPI interface {
	ExchangeToken(ctx context.Context) (string, error)
	ListPaidSales(ctx context.Context, token string, start, end time.Time) ([]sales.Sale, error)
}

var _ SalesAPI = (*sales.Client)(nil)

// Result reports the outcome of one verification sweep. The counters exist
// for diagnostics and audit, not for re-scanning.
type Result struct {
	Found          bool
	WindowsQueried int
	WindowsFailed  int
	RecordsScanned int
}

// Verifier sweeps the recent sales history for a paid purchase matching an
// email address. It is safe for concurrent use; the only shared state is the
// cached bearer token.
type Verifier struct {
	api SalesAPI

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// New builds a verifier over the given merchant API.
func New(api SalesAPI) *Verifier {
	return &Verifier{api: api}
}

// VerifyPurchase reports whether email belongs to a completed purchase within
// the last WindowCount*WindowSpan. Windows are queried most-recent-first and
// the sweep stops at the first match. A single window failing is tolerated;
// all windows failing is ErrIndeterminate.
func (v *Verifier) VerifyPurchase(ctx context.Context, email string) (Result, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return Result{}, ErrMissingEmail
	}

	started := time.Now()
	token, err := v.bearer(ctx)
	if err != nil {
		// No token means no partial result is possible.
		obs.ObserveVerification("error", time.Since(started))
		return Result{}, err
	}

	var res Result
	for _, w := range Windows(time.Now()) {
		items, err := v.api.ListPaidSales(ctx, token, w.Start, w.End)
		if err != nil {
			res.WindowsFailed++
			obs.CountWindowQuery("failed")
			obs.Log("warn", "sales window query failed", map[string]any{
				"window_start": w.Start.Format(time.RFC3339),
				"window_end":   w.End.Format(time.RFC3339),
				"error":        err.Error(),
			})
			continue
		}
		res.WindowsQueried++
		obs.CountWindowQuery("ok")

		for _, s := range items {
			res.RecordsScanned++
			if matches(s, email) {
				res.Found = true
				obs.ObserveVerification("granted", time.Since(started))
				return res, nil
			}
		}
	}

	if res.WindowsQueried == 0 {
		// The token may be the common cause; drop it so the next call
		// exchanges a fresh one.
		v.invalidate()
		obs.ObserveVerification("indeterminate", time.Since(started))
		return res, ErrIndeterminate
	}
	obs.ObserveVerification("not_found", time.Since(started))
	return res, nil
}

func matches(s sales.Sale, email string) bool {
	if s.Status != paidStatus || s.Customer == nil {
		return false
	}
	return strings.EqualFold(s.Customer.Email, email)
}

// bearer returns the cached token or exchanges a new one.
func (v *Verifier) bearer(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.token != "" && time.Now().Before(v.tokenExp) {
		return v.token, nil
	}
	token, err := v.api.ExchangeToken(ctx)
	if err != nil {
		return "", err
	}
	v.token = token
	v.tokenExp = time.Now().Add(tokenReuse)
	return token, nil
}

func (v *Verifier) invalidate() {
	v.mu.Lock()
	v.token = ""
	v.mu.Unlock()
}

package verify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"coursegate.dev/internal/sales"
)

// fakeAPI plays the merchant API. Window queries arrive most-recent-first, so
// the call ordinal identifies the window.
type fakeAPI struct {
	tokenErr   error
	tokenCalls int

	listCalls int
	failAt    map[int]error        // call ordinal -> error
	records   map[int][]sales.Sale // call ordinal -> sales
}

func (f *fakeAPI) ExchangeToken(ctx context.Context) (string, error) {
	f.tokenCalls++
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	return "tok", nil
}

func (f *fakeAPI) ListPaidSales(ctx context.Context, token string, start, end time.Time) ([]sales.Sale, error) {
	idx := f.listCalls
	f.listCalls++
	if err, ok := f.failAt[idx]; ok {
		return nil, err
	}
	return f.records[idx], nil
}

func paidSale(email string) sales.Sale {
	return sales.Sale{Status: "paid", Customer: &sales.Customer{Email: email}}
}

func TestVerifyRejectsEmptyEmail(t *testing.T) {
	api := &fakeAPI{}
	v := New(api)

	_, err := v.VerifyPurchase(context.Background(), "   ")
	if !errors.Is(err, ErrMissingEmail) {
		t.Fatalf("expected ErrMissingEmail, got %v", err)
	}
	if api.tokenCalls != 0 || api.listCalls != 0 {
		t.Fatalf("expected no network calls, got token=%d list=%d", api.tokenCalls, api.listCalls)
	}
}

func TestTokenFailureIsFatal(t *testing.T) {
	api := &fakeAPI{tokenErr: fmt.Errorf("%w: unknown client", sales.ErrAuth)}
	v := New(api)

	_, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if !errors.Is(err, sales.ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}
	if api.listCalls != 0 {
		t.Fatalf("expected no window queries after token failure, got %d", api.listCalls)
	}
}

func TestMatchShortCircuitsRemainingWindows(t *testing.T) {
	api := &fakeAPI{records: map[int][]sales.Sale{
		0: {paidSale("other@example.com")},
		1: {paidSale("user@example.com")},
		2: {paidSale("user@example.com")}, // must never be queried
	}}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("VerifyPurchase failed: %v", err)
	}
	if !res.Found {
		t.Fatal("expected match")
	}
	if api.listCalls != 2 {
		t.Fatalf("expected sweep to stop after 2 queries, got %d", api.listCalls)
	}
}

func TestNotFoundQueriesAllWindows(t *testing.T) {
	api := &fakeAPI{records: map[int][]sales.Sale{
		0: {paidSale("a@example.com")},
		3: {paidSale("b@example.com")},
	}}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("VerifyPurchase failed: %v", err)
	}
	if res.Found {
		t.Fatal("unexpected match")
	}
	if api.listCalls != WindowCount {
		t.Fatalf("expected %d queries, got %d", WindowCount, api.listCalls)
	}
	if res.WindowsQueried != WindowCount || res.RecordsScanned != 2 {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestSingleWindowFailureIsTolerated(t *testing.T) {
	api := &fakeAPI{
		failAt: map[int]error{0: fmt.Errorf("%w: timeout", sales.ErrQuery)},
	}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("expected window failure to be absorbed, got %v", err)
	}
	if res.Found {
		t.Fatal("unexpected match")
	}
	if res.WindowsFailed != 1 || res.WindowsQueried != WindowCount-1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestAllWindowsFailingIsIndeterminate(t *testing.T) {
	api := &fakeAPI{failAt: map[int]error{}}
	for i := 0; i < WindowCount; i++ {
		api.failAt[i] = fmt.Errorf("%w: outage", sales.ErrQuery)
	}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if !errors.Is(err, ErrIndeterminate) {
		t.Fatalf("expected ErrIndeterminate, got %v", err)
	}
	if res.Found {
		t.Fatal("indeterminate sweep must not report a match")
	}
	if res.WindowsFailed != WindowCount {
		t.Fatalf("unexpected counters: %+v", res)
	}
}

func TestEmailMatchIsCaseInsensitive(t *testing.T) {
	api := &fakeAPI{records: map[int][]sales.Sale{
		0: {paidSale("user@example.com")},
	}}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "User@Example.COM")
	if err != nil {
		t.Fatalf("VerifyPurchase failed: %v", err)
	}
	if !res.Found {
		t.Fatal("expected case-insensitive match")
	}
}

func TestOnlyPaidStatusMatches(t *testing.T) {
	api := &fakeAPI{records: map[int][]sales.Sale{
		0: {
			{Status: "refunded", Customer: &sales.Customer{Email: "user@example.com"}},
			{Status: "pending", Customer: &sales.Customer{Email: "user@example.com"}},
			{Status: "paid", Customer: nil},
		},
	}}
	v := New(api)

	res, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("VerifyPurchase failed: %v", err)
	}
	if res.Found {
		t.Fatal("non-paid or customerless records must not match")
	}
}

func TestRepeatedCallsAreIdempotentAndReuseToken(t *testing.T) {
	api := &fakeAPI{records: map[int][]sales.Sale{
		0: {paidSale("user@example.com")},
		1: {paidSale("user@example.com")},
	}}
	v := New(api)

	first, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	second, err := v.VerifyPurchase(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if first.Found != second.Found {
		t.Fatalf("idempotence violated: %+v vs %+v", first, second)
	}
	if api.tokenCalls != 1 {
		t.Fatalf("expected cached token reuse, got %d exchanges", api.tokenCalls)
	}
}

package verify

import (
	"testing"
	"time"
)

func TestWindowsAreContiguousGoingBack(t *testing.T) {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	ws := Windows(now)

	if len(ws) != WindowCount {
		t.Fatalf("expected %d windows, got %d", WindowCount, len(ws))
	}
	if !ws[0].End.Equal(now) {
		t.Fatalf("window[0].End = %v, want %v", ws[0].End, now)
	}
	for i, w := range ws {
		if got := w.End.Sub(w.Start); got != WindowSpan {
			t.Fatalf("window[%d] spans %v, want %v", i, got, WindowSpan)
		}
		if i > 0 && !ws[i].End.Equal(ws[i-1].Start) {
			t.Fatalf("window[%d].End = %v, want window[%d].Start = %v", i, ws[i].End, i-1, ws[i-1].Start)
		}
	}
}

func TestWindowsNormalizeToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+6", 6*3600)
	now := time.Date(2025, 8, 1, 18, 0, 0, 0, loc)
	ws := Windows(now)
	if ws[0].End.Location() != time.UTC {
		t.Fatalf("expected UTC window bounds, got %v", ws[0].End.Location())
	}
	if !ws[0].End.Equal(now) {
		t.Fatalf("UTC conversion changed the instant: %v vs %v", ws[0].End, now)
	}
}

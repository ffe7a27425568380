package verify

import "time"

const (
	// WindowSpan is dictated by the merchant API: a listing query may cover
	// at most 90 days.
	WindowSpan = 90 * 24 * time.Hour

	// WindowCount windows of WindowSpan each cover roughly a year of
	// purchase history.
	WindowCount = 4
)

// Window is one bounded date range for a sales query.
type Window struct {
	Start time.Time
	End   time.Time
}

// Windows generates WindowCount contiguous, non-overlapping windows stepping
// back from now. Windows[0] is the most recent; Windows[i].End equals
// Windows[i-1].Start.
func Windows(now time.Time) []Window {
	now = now.UTC()
	out := make([]Window, 0, WindowCount)
	for i := 0; i < WindowCount; i++ {
		end := now.Add(-time.Duration(i) * WindowSpan)
		out = append(out, Window{Start: end.Add(-WindowSpan), End: end})
	}
	return out
}

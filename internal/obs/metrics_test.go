package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                             "/",
		"/metrics":                     "/metrics",
		"/v1/access/verify":            "/v1/access/verify",
		"/v1/access/attempts":          "/v1/access/attempts",
		"/v1/access/attempts/01ABCDEF": "/v1/access/attempts/:id",
		"/v1/access/attempts?limit=10": "/v1/access/attempts",
		"/v1/access/stream":            "/v1/access/stream",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}

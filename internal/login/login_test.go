package login

import "testing"

// LoginWeb/LoginMobile/ReissueAccessToken are covered by the DB-gated
// tests in login_integration_test.go; normalizeUsername is the one piece
// of C8 with no DB dependency.
func TestNormalizeUsername(t *testing.T) {
	cases := map[string]string{
		"Alice":       "alice",
		"  bob  ":     "bob",
		"CARLOS.diaz": "carlos.diaz",
		"":            "",
	}
	for in, want := range cases {
		if got := normalizeUsername(in); got != want {
			t.Errorf("normalizeUsername(%q) = %q, want %q", in, got, want)
		}
	}
}

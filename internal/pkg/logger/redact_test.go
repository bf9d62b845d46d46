package logger

import "testing"

func TestRedactEmail(t *testing.T) {
	cases := map[string]string{
		"john.doe@example.com": "jo***@example.com",
		"ab@example.com":       "***@example.com",
		"not-an-email":         "***@***",
		"josé@email.com.br":    "jo***@email.com.br",
	}
	for in, want := range cases {
		if got := RedactEmail(in); got != want {
			t.Errorf("RedactEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

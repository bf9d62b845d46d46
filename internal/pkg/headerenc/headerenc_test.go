package headerenc

import "testing"

func TestEncodeASCIIPassthrough(t *testing.T) {
	for _, s := range []string{"", "marketing_manager", "ana@email.com", "true", "42"} {
		if got := Encode(s); got != s {
			t.Errorf("Encode(%q) = %q, want identity", s, got)
		}
	}
}

func TestEncodeNonASCII(t *testing.T) {
	// The gateway contract example: josé@email.com
	got := Encode("josé@email.com")
	want := "base64:am9zw6lAZW1haWwuY29t"
	if got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"José",
		"josé@email.com",
		"Márcia Gonçalves",
		"日本語",
		"plain ascii",
		"",
		"base64:not-actually-encoded", // literal prefix must survive the trip
		"tab\there",
	}
	for _, s := range cases {
		if got := Decode(Encode(s)); got != s {
			t.Errorf("round trip %q → %q", s, got)
		}
	}
}

func TestDecodeMalformedPassthrough(t *testing.T) {
	in := "base64:!!!not base64!!!"
	if got := Decode(in); got != in {
		t.Errorf("malformed payload should pass through, got %q", got)
	}
}

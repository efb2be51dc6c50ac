package hebrew

import (
	"testing"
)

func TestToNumeral(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "א"},
		{10, "י"},
		{15, "טו"},
		{16, "טז"},
		{24, "כד"},
		{100, "ק"},
		{304, "שד"},
		{697, "תרצז"},
	}
	for _, tt := range tests {
		got, err := ToNumeral(tt.n)
		if err != nil {
			t.Fatalf("ToNumeral(%d) errored: %v", tt.n, err)
		}
		if got != tt.want {
			t.Errorf("ToNumeral(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestToNumeral_OutOfRange(t *testing.T) {
	for _, n := range []int{0, -5, 1000} {
		if _, err := ToNumeral(n); err == nil {
			t.Errorf("ToNumeral(%d) should error", n)
		}
	}
}

func TestFromNumeral_RoundTrip(t *testing.T) {
	for n := 1; n <= 999; n++ {
		s, err := ToNumeral(n)
		if err != nil {
			t.Fatalf("ToNumeral(%d): %v", n, err)
		}
		back, err := FromNumeral(s)
		if err != nil {
			t.Fatalf("FromNumeral(%q): %v", s, err)
		}
		if back != n {
			t.Errorf("round trip %d -> %q -> %d", n, s, back)
		}
	}
}

func TestFromNumeral_Punctuation(t *testing.T) {
	got, err := FromNumeral(`כ"ד`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 24 {
		t.Errorf("expected 24, got %d", got)
	}
}

func TestFromNumeral_Invalid(t *testing.T) {
	if _, err := FromNumeral("abc"); err == nil {
		t.Error("expected error for non-numeral input")
	}
	if _, err := FromNumeral(""); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestParseNumber(t *testing.T) {
	if n, err := ParseNumber("24"); err != nil || n != 24 {
		t.Errorf("ParseNumber(24) = %d, %v", n, err)
	}
	if n, err := ParseNumber("כד"); err != nil || n != 24 {
		t.Errorf("ParseNumber(כד) = %d, %v", n, err)
	}
	if _, err := ParseNumber(""); err == nil {
		t.Error("expected error for empty input")
	}
}

package util

import (
	"strings"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel..."},
		{"사과를 식탁에", 3, "사과를..."},
		{"anything", 0, "anything"},
	}
	for _, c := range cases {
		if got := TruncateRunes(c.in, c.max); got != c.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestDetail(t *testing.T) {
	long := strings.Repeat("x", MaxDetailRunes+10)
	if got := Detail(long); len([]rune(got)) != MaxDetailRunes+3 {
		t.Errorf("Detail kept %d runes", len([]rune(got)))
	}
}

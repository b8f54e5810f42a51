package cmd

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"shorter than limit", "short title", 70, "short title"},
		{"exactly at limit", strings.Repeat("a", 10), 10, strings.Repeat("a", 10)},
		{"ascii over limit", "abcdefghij", 5, "abcd…"},
		{"multi-byte over limit", "Günther — Ding Dong Song", 10, "Günther —…"},
		{"cut point inside cjk run", "曖昧な記憶の中の歌", 4, "曖昧な…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			require.Equal(t, tt.want, got)
			require.True(t, utf8.ValidString(got))
		})
	}
}

func TestOrDash(t *testing.T) {
	require.Equal(t, "-", orDash(""))
	require.Equal(t, "Thriller", orDash("Thriller"))
}

func TestYearOrDash(t *testing.T) {
	require.Equal(t, "-", yearOrDash(0))
	require.Equal(t, "1987", yearOrDash(1987))
}

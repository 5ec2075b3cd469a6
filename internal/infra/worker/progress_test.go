//go:build !integration

package worker

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseElapsed(t *testing.T) {
	tests := []struct {
		line string
		want time.Duration
		ok   bool
	}{
		{"out_time_us=25000000", 25 * time.Second, true},
		{"out_time_ms=1500000", 1500 * time.Millisecond, true},
		{" out_time_us = 42 ", 42 * time.Microsecond, true},
		{"out_time_us=N/A", 0, false},
		{"out_time=00:00:25.000000", 0, false},
		{"progress=continue", 0, false},
		{"no separator", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseElapsed(tt.line)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestPercentOf(t *testing.T) {
	require.Equal(t, 25.0, percentOf(25*time.Second, 100*time.Second))
	require.Equal(t, 100.0, percentOf(3*time.Minute, time.Minute))
	require.Equal(t, 0.0, percentOf(-time.Second, time.Minute))
	require.Equal(t, 0.0, percentOf(time.Second, 0))
}

func TestReadLines(t *testing.T) {
	t.Run("should split lines and trim line endings", func(t *testing.T) {
		var got []string
		err := readLines(strings.NewReader("a=1\r\nb=2\n\nc=3"), func(l string) { got = append(got, l) })
		require.NoError(t, err)
		require.Equal(t, []string{"a=1", "b=2", "c=3"}, got)
	})

	t.Run("should truncate oversized lines and keep reading", func(t *testing.T) {
		long := strings.Repeat("z", 3*readBufferSize)
		r := strings.NewReader(long + "\nafter=1\n")
		var got []string
		require.NoError(t, readLines(r, func(l string) { got = append(got, l) }))
		require.Len(t, got, 2)
		require.Len(t, got[0], readBufferSize)
		require.Equal(t, "after=1", got[1])
		require.Zero(t, r.Len())
	})
}

func TestDiagTail(t *testing.T) {
	tail := newDiagTail(3)
	require.Empty(t, tail.last())
	for _, l := range []string{"a", "b", "c", "d"} {
		tail.add(l)
	}
	require.Equal(t, "d", tail.last())
	require.Equal(t, "b\nc\nd", tail.String())
}

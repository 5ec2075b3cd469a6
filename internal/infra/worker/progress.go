package worker

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"media-transcoder/internal/domain/model"
)

const (
	readBufferSize = 64 * 1024
	diagTailLines  = 20
)

// parseElapsed extracts the encoded output time from one ffmpeg -progress
// record. out_time_us and out_time_ms both carry microseconds.
func parseElapsed(line string) (time.Duration, bool) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return 0, false
	}
	switch strings.TrimSpace(key) {
	case "out_time_us", "out_time_ms":
	default:
		return 0, false
	}
	us, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
	if err != nil {
		return 0, false // "N/A" before the first frame
	}
	return time.Duration(us) * time.Microsecond, true
}

// percentOf returns min(elapsed/total, 1) * 100, bounded to [0, 100].
func percentOf(elapsed, total time.Duration) float64 {
	if total <= 0 {
		return 0
	}
	ratio := float64(elapsed) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	return model.ClampPercent(ratio * 100)
}

// readLines calls fn for every line of r. Lines longer than the read buffer
// are truncated rather than aborting the read, so r is always drained to EOF.
func readLines(r io.Reader, fn func(line string)) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		long      []byte
		truncated bool
	)
	for {
		chunk, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			if !truncated {
				long = append(long[:0], chunk...)
				truncated = true
			}
			continue
		}
		line := chunk
		if truncated {
			line = long
			truncated = false
		}
		if s := strings.TrimRight(string(line), "\r\n"); s != "" {
			fn(s)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// diagTail keeps the last n diagnostic lines.
type diagTail struct {
	mu    sync.Mutex
	lines []string
	n     int
}

func newDiagTail(n int) *diagTail { return &diagTail{n: n} }

func (t *diagTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == t.n {
		copy(t.lines, t.lines[1:])
		t.lines = t.lines[:t.n-1]
	}
	t.lines = append(t.lines, line)
}

func (t *diagTail) last() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.lines) == 0 {
		return ""
	}
	return t.lines[len(t.lines)-1]
}

func (t *diagTail) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var b bytes.Buffer
	for i, l := range t.lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
	}
	return b.String()
}

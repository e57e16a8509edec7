package capture

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/linnemanlabs/go-core/log"
)

const maxLineBytes = 1 << 20

// ReaderSource replays newline-delimited JSON events from r.
type ReaderSource struct {
	r      io.Reader
	logger log.Logger
}

// NewReaderSource creates a source reading from r.
func NewReaderSource(r io.Reader, logger log.Logger) *ReaderSource {
	if logger == nil {
		logger = log.Nop()
	}
	return &ReaderSource{r: r, logger: logger}
}

// Run delivers each line as an event. It returns nil at EOF or when ctx is
// done. Blank and undecodable lines are skipped.
func (s *ReaderSource) Run(ctx context.Context, h Handler) error {
	sc := bufio.NewScanner(s.r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line++
		b := sc.Bytes()
		if len(b) == 0 {
			continue
		}
		ev, err := DecodeEvent(b)
		if err != nil {
			s.logger.Warn(ctx, "skipping capture line", "line", line, "error", err)
			continue
		}
		h(ctx, ev)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read events: %w", err)
	}
	return nil
}

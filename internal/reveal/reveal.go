// Package reveal paces an already complete answer out word by word.
package reveal

import (
	"context"
	"strings"
	"time"
)

// DefaultDelay is the pause between two revealed words.
const DefaultDelay = 50 * time.Millisecond

// Frame is the display state after one more word has been revealed.
type Frame struct {
	Index  int    `json:"index"`
	Token  string `json:"token"`
	Buffer string `json:"buffer"`
	Done   bool   `json:"done"`
}

// Words splits text on whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

type Revealer struct {
	Delay time.Duration
	// After is the timer source; tests replace it to avoid real sleeps.
	After func(time.Duration) <-chan time.Time
}

func New(delay time.Duration) *Revealer {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Revealer{Delay: delay, After: time.After}
}

// Run emits one frame per word of text, waiting Delay before each. The
// buffer grows by " "+word per frame. It returns ctx.Err() once ctx is
// cancelled and emits nothing after that.
func (r *Revealer) Run(ctx context.Context, text string, emit func(Frame)) error {
	words := Words(text)
	var buf strings.Builder
	for i, w := range words {
		if err := r.wait(ctx); err != nil {
			return err
		}
		buf.WriteString(" ")
		buf.WriteString(w)
		emit(Frame{
			Index:  i,
			Token:  w,
			Buffer: buf.String(),
			Done:   i == len(words)-1,
		})
	}
	return ctx.Err()
}

func (r *Revealer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.Delay <= 0 {
		return nil
	}
	after := r.After
	if after == nil {
		after = time.After
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-after(r.Delay):
		return nil
	}
}

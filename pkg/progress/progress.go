package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type Bar struct {
	*progressbar.ProgressBar
}

// NewBar draws a bar of max steps. A max of -1 renders a spinner for
// collections whose size is not known in advance.
func NewBar(w io.Writer, max int64, description string) *Bar {
	bar := progressbar.NewOptions64(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)

	return &Bar{ProgressBar: bar}
}

func (b *Bar) Finish() {
	if b.ProgressBar == nil {
		return
	}
	b.ProgressBar.Finish()
}

// Tracker keeps one bar per collection and switches to a new bar whenever
// the reported collection changes. Its Update method matches the progress
// callback of the importer and exporter.
type Tracker struct {
	mu      sync.Mutex
	out     io.Writer
	label   string
	current string
	bar     *Bar
}

func NewTracker(label string) *Tracker {
	return &Tracker{out: os.Stderr, label: label}
}

// NewTrackerTo is NewTracker with an explicit destination.
func NewTrackerTo(w io.Writer, label string) *Tracker {
	return &Tracker{out: w, label: label}
}

func (t *Tracker) Update(collection string, processed, total int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bar == nil || collection != t.current {
		t.finish()
		t.current = collection
		t.bar = NewBar(t.out, total, fmt.Sprintf("%s %s", t.label, collection))
	}
	t.bar.Set64(processed)
}

// Done finishes the bar of the last collection.
func (t *Tracker) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finish()
}

func (t *Tracker) finish() {
	if t.bar != nil {
		t.bar.Finish()
		t.bar = nil
	}
}

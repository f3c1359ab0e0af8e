package session

import (
	"fmt"
	"io"
	"sync"

	"github.com/openfroyo/pocketcalc/pkg/calculator"
)

// WriterDisplay prints every effect to an io.Writer, one line per effect.
type WriterDisplay struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterDisplay creates a display that writes to w.
func NewWriterDisplay(w io.Writer) *WriterDisplay {
	return &WriterDisplay{w: w}
}

// SetDisplay implements calculator.Display.
func (d *WriterDisplay) SetDisplay(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "display: %s\n", text)
}

// SetMemoryIndicator implements calculator.Display. A cleared indicator is
// printed as "-".
func (d *WriterDisplay) SetMemoryIndicator(text string) {
	if text == "" {
		text = "-"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	fmt.Fprintf(d.w, "memory:  %s\n", text)
}

// MultiDisplay forwards effects to every display in order.
type MultiDisplay []calculator.Display

// SetDisplay implements calculator.Display.
func (m MultiDisplay) SetDisplay(text string) {
	for _, d := range m {
		d.SetDisplay(text)
	}
}

// SetMemoryIndicator implements calculator.Display.
func (m MultiDisplay) SetMemoryIndicator(text string) {
	for _, d := range m {
		d.SetMemoryIndicator(text)
	}
}

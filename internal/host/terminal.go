// Package host provides the terminal host that presentation objects are
// attached to while a loading operation runs.
package host

import (
	"io"
	"os"
	"sync"

	"loadseq/internal/logging"

	"github.com/rs/zerolog"
)

// Mounter is implemented by presentation objects that draw to the terminal.
// Objects without it are still tracked but nothing is drawn for them.
type Mounter interface {
	Mount(w io.Writer) error
	Unmount()
}

// Terminal tracks attached presentation objects and mounts them on its
// output. It is safe for concurrent use.
type Terminal struct {
	out    io.Writer
	logger zerolog.Logger

	mu       sync.Mutex
	attached []any
}

// NewTerminal creates a host drawing to out (os.Stderr when nil).
func NewTerminal(out io.Writer) *Terminal {
	if out == nil {
		out = os.Stderr
	}
	return &Terminal{
		out:    out,
		logger: logging.Component("host"),
	}
}

// Attach adds p to the live set and mounts it. Mount failures are logged and
// the object stays attached so Detach remains balanced. p must be comparable,
// usually a pointer.
func (t *Terminal) Attach(p any) {
	t.mu.Lock()
	t.attached = append(t.attached, p)
	depth := len(t.attached)
	t.mu.Unlock()

	m, ok := p.(Mounter)
	if !ok {
		t.logger.Debug().Int("depth", depth).Msg("attached presentation without mount")
		return
	}
	if err := m.Mount(t.out); err != nil {
		t.logger.Warn().Err(err).Msg("mount presentation")
		return
	}
	t.logger.Debug().Int("depth", depth).Msg("mounted presentation")
}

// Detach removes p from the live set and unmounts it. Detaching an object
// that is not attached does nothing.
func (t *Terminal) Detach(p any) {
	t.mu.Lock()
	idx := -1
	for i := len(t.attached) - 1; i >= 0; i-- {
		if t.attached[i] == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		t.mu.Unlock()
		t.logger.Debug().Msg("detach of unknown presentation ignored")
		return
	}
	t.attached = append(t.attached[:idx], t.attached[idx+1:]...)
	t.mu.Unlock()

	if m, ok := p.(Mounter); ok {
		m.Unmount()
	}
	t.logger.Debug().Msg("unmounted presentation")
}

// Attached returns a snapshot of the live objects, oldest first.
func (t *Terminal) Attached() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.attached))
	copy(out, t.attached)
	return out
}

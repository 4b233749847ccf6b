package screen

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/ansi"
)

const (
	defaultFrameInterval = 120 * time.Millisecond
	defaultLineWidth     = 80
)

type lineEvent struct {
	progress float64
	status   string
}

// LineScreen redraws a single terminal line: spinner frame, percentage and
// status. With a delay it stays invisible until the delay passes, so quick
// operations never flash.
type LineScreen struct {
	delay         time.Duration
	frameInterval time.Duration
	width         int
	frames        []rune

	mu       sync.Mutex
	writer   io.Writer
	events   chan lineEvent
	stopCh   chan struct{}
	doneCh   chan struct{}
	mounted  bool
	once     sync.Once
	frameIdx int
}

// NewLineScreen creates an unmounted line screen.
func NewLineScreen(delay time.Duration) *LineScreen {
	return newCustomLineScreen(delay, defaultFrameInterval, defaultLineWidth)
}

func newCustomLineScreen(delay, frameInterval time.Duration, width int) *LineScreen {
	if width <= 0 {
		width = defaultLineWidth
	}
	return &LineScreen{
		delay:         delay,
		frameInterval: frameInterval,
		width:         width,
		frames:        []rune{'|', '/', '-', '\\'},
		events:        make(chan lineEvent, 8),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Mount starts the render loop on w.
func (s *LineScreen) Mount(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return errors.New("line screen already mounted")
	}
	if w == nil {
		w = io.Discard
	}
	s.writer = w
	s.mounted = true
	go s.loop()
	return nil
}

// UpdateLoadingState queues a redraw. Updates are dropped when the queue is
// full or the screen is not running.
func (s *LineScreen) UpdateLoadingState(progress float64, status string) {
	select {
	case <-s.stopCh:
		return
	default:
	}
	select {
	case s.events <- lineEvent{progress: progress, status: status}:
	default:
	}
}

// Unmount stops the loop and clears the line.
func (s *LineScreen) Unmount() {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()

	s.once.Do(func() {
		close(s.stopCh)
		if mounted {
			<-s.doneCh
		}
	})
}

func (s *LineScreen) loop() {
	defer close(s.doneCh)

	var delayCh <-chan time.Time
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		delayCh = timer.C
	}

	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	var current lineEvent
	hasEvent := false
	visible := s.delay == 0

	for {
		select {
		case <-s.stopCh:
			if visible {
				s.clearLine()
			}
			return
		case ev := <-s.events:
			current = ev
			hasEvent = true
			if visible {
				s.render(current)
			}
		case <-ticker.C:
			if visible && hasEvent {
				s.render(current)
			}
		case <-delayCh:
			delayCh = nil
			visible = true
			if hasEvent {
				s.render(current)
			}
		}
	}
}

func (s *LineScreen) render(ev lineEvent) {
	line := formatLine(s.nextFrame(), ev.progress, ev.status, s.width)
	_, _ = fmt.Fprintf(s.writer, "\r\033[2K%s", line)
}

func (s *LineScreen) clearLine() {
	_, _ = fmt.Fprint(s.writer, "\r\033[2K")
}

func (s *LineScreen) nextFrame() rune {
	s.mu.Lock()
	defer s.mu.Unlock()
	frame := s.frames[s.frameIdx%len(s.frames)]
	s.frameIdx++
	return frame
}

func formatLine(frame rune, progress float64, status string, width int) string {
	status = strings.TrimSpace(status)
	if status == "" {
		status = "Loading..."
	}
	line := fmt.Sprintf("%c %3.0f%% %s", frame, clamp01(progress)*100, status)
	return ansi.Truncate(line, width, "…")
}

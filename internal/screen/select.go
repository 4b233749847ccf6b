// Package screen provides the terminal front ends that display loading
// progress while mounted on a host.Terminal.
package screen

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	appErrors "loadseq/internal/errors"
)

// Style names a screen implementation.
type Style string

const (
	StyleAuto Style = "auto"
	StyleTUI  Style = "tui"
	StyleLine Style = "line"
	StyleLog  Style = "log"
	StyleNone Style = "none"
)

// Styles lists every accepted style name.
var Styles = []Style{StyleAuto, StyleTUI, StyleLine, StyleLog, StyleNone}

// ParseStyle validates a style name. An empty name means auto.
func ParseStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return StyleAuto, nil
	}
	for _, s := range Styles {
		if string(s) == name {
			return s, nil
		}
	}
	return "", appErrors.New(appErrors.CodeConfigurationError, fmt.Sprintf("unknown screen style %q", name), nil)
}

// Options configures Select.
type Options struct {
	Title string
	// Delay postpones the line screen's first draw.
	Delay time.Duration
}

// Screen is what Select hands back: something a host can mount that also
// accepts string status updates. Silent is the exception and is returned as
// a plain Mounter.
type Screen interface {
	Mount(w io.Writer) error
	Unmount()
}

// Select resolves style for output w and builds the matching screen.
func Select(style Style, w io.Writer, opts Options) Screen {
	switch Resolve(style, w) {
	case StyleTUI:
		// No input: the terminal stays in cooked mode so ctrl+c still
		// interrupts the process instead of only the screen.
		return NewProgressScreen(opts.Title, tea.WithInput(nil))
	case StyleLine:
		return NewLineScreen(opts.Delay)
	case StyleLog:
		return NewLogScreen(opts.Title)
	default:
		return &Silent{}
	}
}

// Resolve turns auto into a concrete style. Interactive terminals get the
// full screen; everything else gets log lines. Progress can be switched off
// entirely with NO_PROGRESS or LS_NO_PROGRESS.
func Resolve(style Style, w io.Writer) Style {
	if progressDisabled() {
		return StyleNone
	}
	if style != StyleAuto && style != "" {
		return style
	}
	if interactive(w) {
		return StyleTUI
	}
	return StyleLog
}

func progressDisabled() bool {
	if _, ok := os.LookupEnv("LS_NO_PROGRESS"); ok {
		return true
	}
	if _, ok := os.LookupEnv("NO_PROGRESS"); ok {
		return true
	}
	return false
}

type fdWriter interface {
	Fd() uintptr
}

var isTerminal = func(w io.Writer) bool {
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func interactive(w io.Writer) bool {
	if os.Getenv("CI") != "" || os.Getenv("NO_INTERACTION") != "" {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal(w)
}

func colorEnabled() bool {
	return !termenv.EnvNoColor()
}

func newRenderer(w io.Writer) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if !colorEnabled() {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}

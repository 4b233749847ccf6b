package screen

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

const (
	defaultBarWidth  = 40
	unmountGrace     = 500 * time.Millisecond
	updateBufferSize = 16
)

// Colors - a nice purple/magenta theme
var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF79C6")
	dimColor       = lipgloss.Color("#6272A4")
	textColor      = lipgloss.Color("#F8F8F2")
)

type screenStyles struct {
	title     lipgloss.Style
	spinner   lipgloss.Style
	status    lipgloss.Style
	percent   lipgloss.Style
	container lipgloss.Style
}

func newScreenStyles(r *lipgloss.Renderer) screenStyles {
	return screenStyles{
		title:     r.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1),
		spinner:   r.NewStyle().Foreground(secondaryColor),
		status:    r.NewStyle().Foreground(textColor),
		percent:   r.NewStyle().Foreground(dimColor),
		container: r.NewStyle().Padding(1, 2),
	}
}

type screenUpdate struct {
	percent float64
	status  string
	done    bool
}

type updateMsg screenUpdate

// progressModel is the bubbletea model behind ProgressScreen.
type progressModel struct {
	spinner  spinner.Model
	progress progress.Model
	styles   screenStyles

	title   string
	status  string
	percent float64
	width   int
	done    bool

	updates chan screenUpdate
}

func newProgressModel(title string, styles screenStyles) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = styles.spinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(defaultBarWidth),
		progress.WithoutPercentage(),
	)

	return &progressModel{
		spinner:  s,
		progress: p,
		styles:   styles,
		title:    title,
		status:   "Starting",
		updates:  make(chan screenUpdate, updateBufferSize),
	}
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *progressModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-m.updates)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case updateMsg:
		if msg.done {
			m.done = true
			return m, tea.Quit
		}
		m.percent = clamp01(msg.percent)
		m.status = msg.status
		return m, tea.Batch(m.progress.SetPercent(m.percent), m.waitForUpdate())

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m *progressModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	if m.title != "" {
		b.WriteString(m.styles.title.Render(m.title))
		b.WriteString("\n")
	}

	b.WriteString(m.progress.View())
	b.WriteString(" ")
	b.WriteString(m.styles.percent.Render(fmt.Sprintf("%3.0f%%", m.percent*100)))
	b.WriteString("\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.status.Render(wordwrap.String(m.status, m.statusWidth())))

	return m.styles.container.Render(b.String())
}

func (m *progressModel) statusWidth() int {
	if m.width <= 0 {
		return defaultBarWidth + 8
	}
	// container padding plus spinner
	if w := m.width - 8; w > 10 {
		return w
	}
	return 10
}

func (m *progressModel) send(update screenUpdate) {
	select {
	case m.updates <- update:
	default:
		// Drop if channel is full
	}
}

// ProgressScreen is a full loading screen: title, progress bar, spinner and
// status. It runs its own bubbletea program while mounted.
type ProgressScreen struct {
	title       string
	programOpts []tea.ProgramOption

	mu      sync.Mutex
	model   *progressModel
	program *tea.Program
	out     io.Writer
	done    chan struct{}
	mounted bool
	stopped bool
}

// NewProgressScreen creates an unmounted loading screen.
func NewProgressScreen(title string, opts ...tea.ProgramOption) *ProgressScreen {
	return &ProgressScreen{title: title, programOpts: opts}
}

// Mount starts the bubbletea program on w. A screen can be mounted once.
func (s *ProgressScreen) Mount(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mounted {
		return errors.New("progress screen already mounted")
	}

	model := newProgressModel(s.title, newScreenStyles(newRenderer(w)))
	opts := append([]tea.ProgramOption{
		tea.WithOutput(w),
		tea.WithoutSignalHandler(), // We handle signals ourselves
	}, s.programOpts...)
	program := tea.NewProgram(model, opts...)

	s.model = model
	s.program = program
	s.out = w
	s.done = make(chan struct{})
	s.mounted = true

	done := s.done
	go func() {
		_, _ = program.Run()
		close(done)
	}()
	return nil
}

// UpdateLoadingState forwards progress to the running program. Updates sent
// before Mount or after Unmount are dropped.
func (s *ProgressScreen) UpdateLoadingState(progress float64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted || s.stopped {
		return
	}
	s.model.send(screenUpdate{percent: progress, status: status})
}

// Unmount stops the program, killing it if it does not exit in time.
func (s *ProgressScreen) Unmount() {
	s.mu.Lock()
	if !s.mounted || s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	model, program, done, out := s.model, s.program, s.done, s.out
	s.mu.Unlock()

	model.send(screenUpdate{done: true})

	select {
	case <-done:
	case <-time.After(unmountGrace):
		program.Kill()
		<-done
	}

	// Clear the line
	_, _ = fmt.Fprint(out, "\r\033[K")
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

package screen

import (
	"io"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// LogScreen writes one structured log line per visible change in progress.
// It suits non-interactive output such as CI logs.
type LogScreen struct {
	title string

	mu          sync.Mutex
	logger      zerolog.Logger
	lastPercent int
	lastStatus  string
}

// NewLogScreen creates an unmounted log screen.
func NewLogScreen(title string) *LogScreen {
	return &LogScreen{title: title, logger: zerolog.Nop(), lastPercent: -1}
}

// Mount starts logging to w in human-readable console format.
func (s *LogScreen) Mount(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: !colorEnabled()}).
		With().Timestamp().Str("plan", s.title).Logger()
	s.lastPercent = -1
	s.lastStatus = ""
	s.logger.Info().Msg("loading")
	return nil
}

// UpdateLoadingState logs when the whole percentage or the status changes.
func (s *LogScreen) UpdateLoadingState(progress float64, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	percent := int(math.Floor(clamp01(progress) * 100))
	if percent == s.lastPercent && status == s.lastStatus {
		return
	}
	s.lastPercent = percent
	s.lastStatus = status
	s.logger.Info().Int("percent", percent).Str("status", status).Msg("progress")
}

// Unmount writes a closing line and stops logging.
func (s *LogScreen) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info().Int("percent", s.lastPercent).Msg("loading finished")
	s.logger = zerolog.Nop()
}

// Silent is mounted like any screen but displays nothing. It does not
// implement UpdateLoadingState, so progress is never routed to it.
type Silent struct{}

// Mount implements host.Mounter.
func (*Silent) Mount(io.Writer) error { return nil }

// Unmount implements host.Mounter.
func (*Silent) Unmount() {}

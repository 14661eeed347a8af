package game

import "go.uber.org/zap"

// Podium timing defaults, seconds.
const (
	DefaultPodiumFade   = 1.0
	DefaultPodiumBuffer = 0.5
	DefaultPodiumHold   = 8.0
)

// Podium sequence phases.
const (
	podiumIdle = iota
	podiumFadeOut
	podiumHold
	podiumDone
)

// podiumTimerEpsilon absorbs float accumulation in the phase timers so
// a boundary-exact sequence of ticks still fires the transition.
const podiumTimerEpsilon = 1e-9

// PodiumConfig carries the sequence timing. Anchor placement lives
// with the engine, which owns the players being arranged.
type PodiumConfig struct {
	FadeDuration float64
	FadeBuffer   float64
	HoldDuration float64
}

// PodiumEntry is one ranked line of the final standings.
type PodiumEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Score    int    `json:"score"`
}

// PodiumCallbacks are the phase-transition hooks the engine wires in.
// Arrange runs once after the fade wait and returns the computed
// standings; Ready receives them for the reveal.
type PodiumCallbacks struct {
	FadeOut  func()
	Arrange  func() []PodiumEntry
	Ready    func([]PodiumEntry)
	Teardown func()
}

// PodiumSequencer drives the one-shot end-of-match sequence as a phase
// machine advanced by engine ticks: fade out, wait, arrange winners,
// reveal, hold, tear down. There is no retry logic; this is
// fire-and-forget narrative sequencing.
type PodiumSequencer struct {
	cfg PodiumConfig
	cb  PodiumCallbacks
	log *zap.Logger

	phase int
	timer float64
	top   []PodiumEntry
}

func NewPodiumSequencer(cfg PodiumConfig, cb PodiumCallbacks, log *zap.Logger) *PodiumSequencer {
	if cfg.FadeDuration <= 0 {
		cfg.FadeDuration = DefaultPodiumFade
	}
	if cfg.FadeBuffer <= 0 {
		cfg.FadeBuffer = DefaultPodiumBuffer
	}
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = DefaultPodiumHold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PodiumSequencer{cfg: cfg, cb: cb, log: log}
}

// Start kicks off the sequence with the fade to black. A second call
// is a no-op; a match ends exactly once.
func (s *PodiumSequencer) Start() bool {
	if s.phase != podiumIdle {
		return false
	}
	s.phase = podiumFadeOut
	s.timer = s.cfg.FadeDuration + s.cfg.FadeBuffer
	s.log.Info("post-match sequence started",
		zap.Float64("fade_secs", s.cfg.FadeDuration),
		zap.Float64("hold_secs", s.cfg.HoldDuration))
	if s.cb.FadeOut != nil {
		s.cb.FadeOut()
	}
	return true
}

// Advance drives the phase timers. Safe to call every tick regardless
// of phase.
func (s *PodiumSequencer) Advance(dt float64) {
	switch s.phase {
	case podiumFadeOut:
		s.timer -= dt
		if s.timer > podiumTimerEpsilon {
			return
		}
		if s.cb.Arrange != nil {
			s.top = s.cb.Arrange()
		}
		if s.cb.Ready != nil {
			s.cb.Ready(s.top)
		}
		s.phase = podiumHold
		s.timer = s.cfg.HoldDuration

	case podiumHold:
		s.timer -= dt
		if s.timer > podiumTimerEpsilon {
			return
		}
		s.phase = podiumDone
		s.log.Info("podium hold complete, tearing down")
		if s.cb.Teardown != nil {
			s.cb.Teardown()
		}
	}
}

// Running reports whether the sequence is mid-flight.
func (s *PodiumSequencer) Running() bool {
	return s.phase == podiumFadeOut || s.phase == podiumHold
}

// Finished reports whether teardown has run.
func (s *PodiumSequencer) Finished() bool { return s.phase == podiumDone }

// Standings returns the entries computed at arrange time, nil before
// then.
func (s *PodiumSequencer) Standings() []PodiumEntry { return s.top }

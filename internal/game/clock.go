package game

// Match phases.
const (
	PhaseWaiting   = "Waiting"   // lobby, below minimum player count
	PhaseCountdown = "Countdown" // pre-match countdown running
	PhasePlaying   = "Playing"   // clock ticking, combat live
	PhasePostMatch = "PostMatch" // podium sequence running
	PhaseEnded     = "Ended"     // session torn down
)

const (
	DefaultMatchDuration = 300 // seconds
	DefaultCountdown     = 5   // seconds

	// TagDesignateDelay is how far into Playing the one-shot initial
	// "it" designation runs for tag mode.
	TagDesignateDelay = 5.0
)

// MatchClock owns match phase and the authoritative countdown. Only
// the engine tick advances it; a fractional accumulator converts tick
// deltas into whole-second decrements so the replicated remaining time
// is always an integer and drains keyed to it land identically for
// every observer.
type MatchClock struct {
	Phase            string `json:"phase"`
	SecondsRemaining int    `json:"secondsRemaining"`
	CountdownLeft    int    `json:"countdownLeft"`

	durationSecs  int
	countdownSecs int
	acc           float64
	playingFor    float64

	hasTriggeredPostMatch bool
	tagCheckFired         bool
}

// clockEvents reports what one Advance produced, so the engine can
// react without the clock knowing about journals or podiums.
type clockEvents struct {
	CountdownChanged bool
	MatchStarted     bool
	SecondsTicked    int  // whole-second decrements this tick
	TagCheckDue      bool // one-shot, TagDesignateDelay into Playing
	Expired          bool // countdown hit zero; fires exactly once
}

// NewMatchClock returns a clock idling in Waiting.
func NewMatchClock(durationSecs, countdownSecs int) *MatchClock {
	if durationSecs <= 0 {
		durationSecs = DefaultMatchDuration
	}
	if countdownSecs <= 0 {
		countdownSecs = DefaultCountdown
	}
	return &MatchClock{
		Phase:            PhaseWaiting,
		SecondsRemaining: durationSecs,
		durationSecs:     durationSecs,
		countdownSecs:    countdownSecs,
	}
}

// BeginCountdown moves Waiting to Countdown once the lobby fills.
func (c *MatchClock) BeginCountdown() bool {
	if c.Phase != PhaseWaiting {
		return false
	}
	c.Phase = PhaseCountdown
	c.CountdownLeft = c.countdownSecs
	c.acc = 0
	return true
}

// Advance moves the clock by dt seconds and reports what happened.
// The post-match trigger is latched: once fired it can never fire
// again, no matter how many further ticks observe zero.
func (c *MatchClock) Advance(dt float64) clockEvents {
	var ev clockEvents

	switch c.Phase {
	case PhaseCountdown:
		c.acc += dt
		for c.acc >= 1 && c.CountdownLeft > 0 {
			c.acc--
			c.CountdownLeft--
			ev.CountdownChanged = true
		}
		if c.CountdownLeft <= 0 {
			c.Phase = PhasePlaying
			c.SecondsRemaining = c.durationSecs
			c.acc = 0
			c.playingFor = 0
			ev.MatchStarted = true
		}

	case PhasePlaying:
		before := c.playingFor
		c.playingFor += dt
		if !c.tagCheckFired && before < TagDesignateDelay && c.playingFor >= TagDesignateDelay {
			c.tagCheckFired = true
			ev.TagCheckDue = true
		}

		c.acc += dt
		for c.acc >= 1 && c.SecondsRemaining > 0 {
			c.acc--
			c.SecondsRemaining--
			ev.SecondsTicked++
		}
		if c.SecondsRemaining <= 0 && !c.hasTriggeredPostMatch {
			c.hasTriggeredPostMatch = true
			c.Phase = PhasePostMatch
			ev.Expired = true
		}
	}

	return ev
}

// Finish marks the session torn down after the podium hold completes.
func (c *MatchClock) Finish() {
	c.Phase = PhaseEnded
}

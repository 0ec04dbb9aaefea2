package segment

import (
	"fmt"

	"github.com/skypro1111/voxsql/internal/audio"
)

// State is the speaking state of the machine
type State int

const (
	StateIdle State = iota
	StateSpeaking
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Action tells the caller what to do after a step
type Action int

const (
	ActionNone Action = iota
	ActionFlush
	ActionDiscard
)

// String returns the action name
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionFlush:
		return "flush"
	case ActionDiscard:
		return "discard"
	default:
		return fmt.Sprintf("unknown(%d)", int(a))
	}
}

// Reason explains why an utterance ended
type Reason string

const (
	ReasonSilence     Reason = "silence"
	ReasonMaxDuration Reason = "max_duration"
	ReasonTooShort    Reason = "too_short"
	ReasonShutdown    Reason = "shutdown" // unfinished when the pipeline stopped
)

// Decision is the outcome of one step. Utterance is set for flushes and
// discards and is owned by the caller.
type Decision struct {
	Action    Action
	Reason    Reason
	Utterance audio.Block
}

// Config holds the machine limits in samples
type Config struct {
	SilenceSamples   int // Consecutive non-speech samples that end an utterance
	MinSpeechSamples int // Shorter utterances are discarded
	MaxSamples       int // Utterances are force-flushed at this length
}

// Validate checks the limits
func (c Config) Validate() error {
	if c.SilenceSamples <= 0 {
		return fmt.Errorf("silence samples must be positive, got %d", c.SilenceSamples)
	}
	if c.MinSpeechSamples < 0 {
		return fmt.Errorf("min speech samples must not be negative, got %d", c.MinSpeechSamples)
	}
	if c.MaxSamples <= 0 {
		return fmt.Errorf("max samples must be positive, got %d", c.MaxSamples)
	}
	if c.MinSpeechSamples > c.MaxSamples {
		return fmt.Errorf("min speech samples (%d) exceed max samples (%d)", c.MinSpeechSamples, c.MaxSamples)
	}
	return nil
}

// Machine is the speaking/silence state machine.
// It is owned by the consumer loop and is not safe for concurrent use.
type Machine struct {
	config  Config
	state   State
	buffer  audio.Block
	silence int
}

// NewMachine creates a machine in the idle state
func NewMachine(config Config) (*Machine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Machine{config: config, state: StateIdle}, nil
}

// Step advances the machine by one block. raw is the pre-denoise block and
// speech is the detector's verdict for the window ending with it.
func (m *Machine) Step(raw audio.Block, speech bool) Decision {
	if speech {
		return m.speech(raw)
	}
	return m.nonSpeech(len(raw))
}

func (m *Machine) speech(raw audio.Block) Decision {
	m.state = StateSpeaking
	m.silence = 0

	room := m.config.MaxSamples - len(m.buffer)
	if len(raw) > room {
		// The rest of this block is dropped; the bound is never exceeded
		raw = raw[:room]
	}
	m.buffer = append(m.buffer, raw...)

	if len(m.buffer) >= m.config.MaxSamples {
		return m.end(ActionFlush, ReasonMaxDuration)
	}
	return Decision{Action: ActionNone}
}

func (m *Machine) nonSpeech(n int) Decision {
	if m.state != StateSpeaking {
		return Decision{Action: ActionNone}
	}

	m.silence += n
	if m.silence < m.config.SilenceSamples {
		return Decision{Action: ActionNone}
	}

	if len(m.buffer) < m.config.MinSpeechSamples {
		return m.end(ActionDiscard, ReasonTooShort)
	}
	return m.end(ActionFlush, ReasonSilence)
}

func (m *Machine) end(action Action, reason Reason) Decision {
	d := Decision{
		Action:    action,
		Reason:    reason,
		Utterance: m.buffer,
	}
	m.buffer = nil
	m.silence = 0
	m.state = StateIdle
	return d
}

// State returns the current state
func (m *Machine) State() State {
	return m.state
}

// Buffered returns the number of samples in the utterance buffer
func (m *Machine) Buffered() int {
	return len(m.buffer)
}

// Silence returns the silence counter. It is only meaningful while speaking.
func (m *Machine) Silence() int {
	return m.silence
}

// Reset returns the machine to idle and drops any buffered audio
func (m *Machine) Reset() {
	m.buffer = nil
	m.silence = 0
	m.state = StateIdle
}

package audio

import (
	"time"
)

// Default endpointing values.
const (
	DefaultNoSpeechTimeout = 5 * time.Second
	DefaultMaxUtterance    = 15 * time.Second
)

// Decision is what the Endpointer concluded after a chunk.
type Decision int

const (
	// DecisionContinue means keep capturing.
	DecisionContinue Decision = iota
	// DecisionEndOfUtterance means speech was heard and has now ended.
	DecisionEndOfUtterance
	// DecisionNoSpeech means nothing was said within the no-speech timeout.
	DecisionNoSpeech
	// DecisionMaxDuration means the utterance hit the length limit.
	DecisionMaxDuration
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case DecisionContinue:
		return "continue"
	case DecisionEndOfUtterance:
		return "end-of-utterance"
	case DecisionNoSpeech:
		return "no-speech"
	case DecisionMaxDuration:
		return "max-duration"
	default:
		return unknownState
	}
}

// EndpointParams configures an Endpointer.
type EndpointParams struct {
	VAD VADParams

	// NoSpeechTimeout ends capture when no speech started within it.
	NoSpeechTimeout time.Duration

	// MaxUtterance bounds the whole capture.
	MaxUtterance time.Duration
}

// DefaultEndpointParams returns the defaults used for single-shot voice input.
func DefaultEndpointParams() EndpointParams {
	return EndpointParams{
		VAD:             DefaultVADParams(),
		NoSpeechTimeout: DefaultNoSpeechTimeout,
		MaxUtterance:    DefaultMaxUtterance,
	}
}

// Endpointer accumulates one utterance and detects where it ends: after
// speech followed by VADParams.StopSecs of silence.
//
// An Endpointer is used by a single capture goroutine and is not safe for
// concurrent use.
type Endpointer struct {
	params    EndpointParams
	vad       *SimpleVAD
	buf       []byte
	hadSpeech bool
	done      Decision
}

// NewEndpointer creates an Endpointer.
func NewEndpointer(params EndpointParams) (*Endpointer, error) {
	vad, err := NewSimpleVAD(params.VAD)
	if err != nil {
		return nil, err
	}
	if params.NoSpeechTimeout <= 0 {
		params.NoSpeechTimeout = DefaultNoSpeechTimeout
	}
	if params.MaxUtterance <= 0 {
		params.MaxUtterance = DefaultMaxUtterance
	}
	return &Endpointer{params: params, vad: vad}, nil
}

// Feed appends chunk to the utterance and returns the decision. Once a
// final decision was reached it is returned again and further audio is
// ignored.
func (e *Endpointer) Feed(chunk []byte) Decision {
	if e.done != DecisionContinue {
		return e.done
	}
	e.buf = append(e.buf, chunk...)
	_, ev := e.vad.Analyze(chunk)

	if ev != nil {
		switch {
		case ev.State == VADStateSpeaking:
			e.hadSpeech = true
		case ev.State == VADStateQuiet && ev.PrevState == VADStateStopping && e.hadSpeech:
			e.done = DecisionEndOfUtterance
			return e.done
		}
	}

	pos := e.vad.Position()
	switch {
	case !e.hadSpeech && e.vad.State() != VADStateStarting && pos >= e.params.NoSpeechTimeout:
		e.done = DecisionNoSpeech
	case pos >= e.params.MaxUtterance:
		e.done = DecisionMaxDuration
	}
	return e.done
}

// HadSpeech reports whether any speech was detected.
func (e *Endpointer) HadSpeech() bool { return e.hadSpeech }

// Audio returns the captured PCM.
func (e *Endpointer) Audio() []byte { return e.buf }

// Duration returns how much audio was captured.
func (e *Endpointer) Duration() time.Duration { return e.vad.Position() }

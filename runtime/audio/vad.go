package audio

import (
	"fmt"
	"time"
)

// Voice detection defaults, tuned for the 16 kHz mono capture that
// recognition.DefaultRecorderCommand produces.
const (
	DefaultVADConfidence = 0.5
	DefaultVADStartSecs  = 0.2
	DefaultVADStopSecs   = 0.8
	DefaultVADMinVolume  = 0.01
	DefaultVADSampleRate = 16000
)

const unknownState = "unknown"

// VADState is where the detector is in a speech segment.
type VADState int

const (
	VADStateQuiet    VADState = iota // no voice
	VADStateStarting                 // voice heard, not yet for StartSecs
	VADStateSpeaking                 // utterance in progress
	VADStateStopping                 // silence heard, not yet for StopSecs
)

var vadStateNames = [...]string{"quiet", "starting", "speaking", "stopping"}

func (s VADState) String() string {
	if s < 0 || int(s) >= len(vadStateNames) {
		return unknownState
	}
	return vadStateNames[s]
}

// VADParams tunes SimpleVAD. Endpointer takes them through EndpointParams.VAD.
type VADParams struct {
	// Confidence is the speech probability a chunk needs to count as voice.
	Confidence float64
	// StartSecs of voice turn starting into speaking; shorter blips are noise.
	StartSecs float64
	// StopSecs of silence end an utterance; shorter pauses are kept.
	StopSecs float64
	// MinVolume is the RMS floor, as a fraction of full scale, under which
	// a chunk is silence.
	MinVolume float64
	// SampleRate of the 16-bit mono PCM fed to the detector.
	SampleRate int
}

// DefaultVADParams returns the parameters used for push-to-talk capture.
func DefaultVADParams() VADParams {
	return VADParams{
		Confidence: DefaultVADConfidence,
		StartSecs:  DefaultVADStartSecs,
		StopSecs:   DefaultVADStopSecs,
		MinVolume:  DefaultVADMinVolume,
		SampleRate: DefaultVADSampleRate,
	}
}

// Validate reports the first out-of-range parameter as a *ParamError.
func (p VADParams) Validate() error {
	switch {
	case p.Confidence < 0 || p.Confidence > 1:
		return &ParamError{Field: "Confidence", Value: p.Confidence, Reason: "outside [0, 1]"}
	case p.StartSecs < 0:
		return &ParamError{Field: "StartSecs", Value: p.StartSecs, Reason: "negative"}
	case p.StopSecs < 0:
		return &ParamError{Field: "StopSecs", Value: p.StopSecs, Reason: "negative"}
	case p.MinVolume < 0 || p.MinVolume > 1:
		return &ParamError{Field: "MinVolume", Value: p.MinVolume, Reason: "outside [0, 1]"}
	case p.SampleRate <= 0:
		return &ParamError{Field: "SampleRate", Value: p.SampleRate, Reason: "not positive"}
	}
	return nil
}

// ParamError is a rejected VADParams field.
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("audio: VAD %s=%v %s", e.Field, e.Value, e.Reason)
}

// VADEvent is emitted by SimpleVAD.Analyze when the state changes.
type VADEvent struct {
	State     VADState
	PrevState VADState
	// Offset into the analyzed stream at which State began.
	Offset time.Duration
	// Duration spent in PrevState.
	Duration   time.Duration
	Confidence float64
}

package audio

import (
	"sync"
	"time"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/stt"
)

const (
	// defaultSmoothingAlpha is the exponential smoothing factor (0.0-1.0).
	defaultSmoothingAlpha = 0.3
	// pcmBytesPerSample is the number of bytes per 16-bit PCM sample.
	pcmBytesPerSample = 2
	// maxExpectedRMS is the expected maximum RMS for voice audio.
	maxExpectedRMS = 0.5
)

// SimpleVAD is a voice activity detector based on smoothed RMS volume.
// It needs no model and works on 16-bit little-endian mono PCM.
type SimpleVAD struct {
	params VADParams

	mu          sync.Mutex
	state       VADState
	position    time.Duration // audio analyzed so far
	stateStart  time.Duration
	smoothedRMS float64
	alpha       float64
}

// NewSimpleVAD creates a SimpleVAD analyzer with the given parameters.
func NewSimpleVAD(params VADParams) (*SimpleVAD, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &SimpleVAD{
		params: params,
		state:  VADStateQuiet,
		alpha:  defaultSmoothingAlpha,
	}, nil
}

// Name returns the analyzer identifier.
func (v *SimpleVAD) Name() string {
	return "simple-rms"
}

// Analyze processes one chunk and returns the voice probability and, when
// the chunk caused a state transition, the transition.
func (v *SimpleVAD) Analyze(chunk []byte) (float64, *VADEvent) {
	if len(chunk) < pcmBytesPerSample {
		return 0, nil
	}
	rms := stt.PCM16Level(chunk)
	chunkDur := stt.PCMDuration(len(chunk), v.params.SampleRate, 1, stt.DefaultBitDepth)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.smoothedRMS = v.alpha*rms + (1-v.alpha)*v.smoothedRMS
	probability := v.rmsToProbability(v.smoothedRMS)
	v.position += chunkDur

	inState := v.position - v.stateStart
	next := v.computeNextState(v.state, probability, inState.Seconds())
	if next == v.state {
		return probability, nil
	}
	ev := &VADEvent{
		State:      next,
		PrevState:  v.state,
		Offset:     v.position,
		Duration:   inState,
		Confidence: probability,
	}
	v.state = next
	v.stateStart = v.position
	return probability, ev
}

func (v *SimpleVAD) rmsToProbability(rms float64) float64 {
	if rms <= v.params.MinVolume {
		return 0
	}
	// Typical voice RMS is 0.05-0.3 for normalized audio.
	probability := (rms - v.params.MinVolume) / (maxExpectedRMS - v.params.MinVolume)
	if probability > 1 {
		return 1
	}
	return probability
}

// computeNextState is the VAD state machine.
func (v *SimpleVAD) computeNextState(current VADState, probability, stateDurationSecs float64) VADState {
	aboveThreshold := probability >= v.params.Confidence

	switch current {
	case VADStateQuiet:
		if aboveThreshold {
			return VADStateStarting
		}
	case VADStateStarting:
		if !aboveThreshold {
			return VADStateQuiet
		}
		if stateDurationSecs >= v.params.StartSecs {
			return VADStateSpeaking
		}
	case VADStateSpeaking:
		if !aboveThreshold {
			return VADStateStopping
		}
	case VADStateStopping:
		if aboveThreshold {
			return VADStateSpeaking
		}
		if stateDurationSecs >= v.params.StopSecs {
			return VADStateQuiet
		}
	}
	return current
}

// State returns the current VAD state.
func (v *SimpleVAD) State() VADState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Position returns how much audio has been analyzed.
func (v *SimpleVAD) Position() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.position
}

// Reset clears accumulated state for a new utterance.
func (v *SimpleVAD) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = VADStateQuiet
	v.position = 0
	v.stateStart = 0
	v.smoothedRMS = 0
}

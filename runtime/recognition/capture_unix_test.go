//go:build unix

package recognition

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/audio"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/stt"
)

type fakeTranscriber struct {
	mu     sync.Mutex
	text   string
	err    error
	calls  int
	config stt.TranscriptionConfig
	bytes  int
}

func (f *fakeTranscriber) Name() string { return "fake-stt" }

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, cfg stt.TranscriptionConfig) (*stt.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.config = cfg
	f.bytes = len(audio)
	if f.err != nil {
		return nil, f.err
	}
	return &stt.Transcript{Text: f.text, Language: cfg.Language}, nil
}

// writeUtterance writes 1s of tone followed by 2s of silence as raw PCM.
func writeUtterance(t *testing.T) string {
	t.Helper()
	const rate = 16000
	data := make([]byte, 3*rate*2)
	for i := 0; i < rate; i++ {
		s := int16(0.9 * 32767 * math.Sin(float64(i)*0.1))
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	path := filepath.Join(t.TempDir(), "utterance.raw")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatalf("session did not end, got %v", out)
			return nil
		}
	}
}

func startSession(t *testing.T, e *CaptureEngine, ctx context.Context) <-chan Event {
	t.Helper()
	rec, err := e.NewRecognizer(DefaultConfig())
	require.NoError(t, err)
	ch, err := rec.Start(ctx, "fr-FR")
	require.NoError(t, err)
	return ch
}

func TestCapture_TranscribesUtterance(t *testing.T) {
	f := &fakeTranscriber{text: "bonjour"}
	e := NewCaptureEngine(f, WithRecorderCommand("cat", writeUtterance(t)))

	got := collect(t, startSession(t, e, context.Background()))

	require.Len(t, got, 3, "events: %v", got)
	assert.Equal(t, Started{}, got[0])
	assert.Equal(t, Result{Fragments: []Fragment{{Transcript: "bonjour", Final: true}}}, got[1])
	assert.Equal(t, Ended{}, got[2])

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, "fr-FR", f.config.Language)
	assert.Equal(t, stt.FormatPCM, f.config.Format)
	assert.Equal(t, 16000, f.config.SampleRate)
	// Capture stops once the trailing silence ends the utterance.
	assert.Less(t, f.bytes, 3*16000*2)
}

func TestCapture_SilenceIsNoSpeech(t *testing.T) {
	f := &fakeTranscriber{text: "never"}
	e := NewCaptureEngine(f, WithRecorderCommand("head", "-c", "64000", "/dev/zero"))

	got := collect(t, startSession(t, e, context.Background()))

	require.Len(t, got, 3)
	assert.Equal(t, Error{Code: CodeNoSpeech}, got[1])
	assert.Zero(t, f.calls)
}

func TestCapture_RecorderFailureIsAudioCapture(t *testing.T) {
	e := NewCaptureEngine(&fakeTranscriber{},
		WithRecorderCommand("sh", "-c", "echo 'no capture device' >&2; exit 1"))

	got := collect(t, startSession(t, e, context.Background()))

	require.Len(t, got, 3)
	errEv, ok := got[1].(Error)
	require.True(t, ok)
	assert.Equal(t, CodeAudioCapture, errEv.Code)
	assert.Equal(t, "no capture device", errEv.Detail)
}

func TestCapture_StopEndsSession(t *testing.T) {
	e := NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("sh", "-c", "exec sleep 10"))
	rec, err := e.NewRecognizer(DefaultConfig())
	require.NoError(t, err)
	ch, err := rec.Start(context.Background(), "fr-FR")
	require.NoError(t, err)

	_, err = rec.Start(context.Background(), "fr-FR")
	require.ErrorIs(t, err, errSessionRunning)

	require.NoError(t, rec.Stop())
	require.NoError(t, rec.Stop())
	got := collect(t, ch)

	require.Len(t, got, 3)
	assert.Equal(t, Error{Code: CodeNoSpeech}, got[1])

	// The recognizer is reusable afterwards.
	ch, err = rec.Start(context.Background(), "fr-FR")
	require.NoError(t, err)
	require.NoError(t, rec.Stop())
	collect(t, ch)
}

func TestCapture_ContextCancelAborts(t *testing.T) {
	e := NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("sh", "-c", "exec sleep 10"))
	ctx, cancel := context.WithCancel(context.Background())
	ch := startSession(t, e, ctx)
	cancel()

	got := collect(t, ch)
	require.Len(t, got, 3)
	errEv, ok := got[1].(Error)
	require.True(t, ok)
	assert.Equal(t, CodeAborted, errEv.Code)
}

func TestCapture_TranscriptionErrorsAreMapped(t *testing.T) {
	f := &fakeTranscriber{err: stt.NewTranscriptionError("fake-stt", "unsupported_language", "nope", stt.ErrLanguageNotSupported, false)}
	e := NewCaptureEngine(f, WithRecorderCommand("cat", writeUtterance(t)))

	got := collect(t, startSession(t, e, context.Background()))

	require.Len(t, got, 3)
	errEv, ok := got[1].(Error)
	require.True(t, ok)
	assert.Equal(t, CodeLanguageNotSupported, errEv.Code)
}

func TestCaptureEngine_ProbeMicrophone(t *testing.T) {
	ok := NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("head", "-c", "1000", "/dev/zero"))
	require.NoError(t, ok.ProbeMicrophone(context.Background()))

	denied := NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("sh", "-c", "echo 'device busy' >&2; exit 1"))
	err := denied.ProbeMicrophone(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device busy")

	silent := NewCaptureEngine(&fakeTranscriber{},
		WithRecorderCommand("sh", "-c", "exec sleep 10"),
		WithProbeTimeout(50*time.Millisecond))
	require.Error(t, silent.ProbeMicrophone(context.Background()))
}

func TestCaptureEngine_Supported(t *testing.T) {
	assert.True(t, NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("cat")).Supported())
	assert.False(t, NewCaptureEngine(&fakeTranscriber{}, WithRecorderCommand("no-such-recorder-binary")).Supported())
	assert.False(t, NewCaptureEngine(nil, WithRecorderCommand("cat")).Supported())

	_, err := NewCaptureEngine(nil).NewRecognizer(DefaultConfig())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestHandler_WithCaptureEngine(t *testing.T) {
	e := NewCaptureEngine(&fakeTranscriber{text: "je voudrais un café"},
		WithRecorderCommand("cat", writeUtterance(t)))
	// The probe reads the same file.
	log := newCallbackLog()
	h := NewHandler(e, WithCallbacks(log.callbacks()))
	defer h.Close()

	require.NoError(t, h.Start(context.Background()))
	receive(t, log.starts)
	assert.Equal(t, result{"je voudrais un café", true}, receive(t, log.results))
	receive(t, log.ends)
}

func TestCodeForTranscriptionError(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{stt.ErrLanguageNotSupported, CodeLanguageNotSupported},
		{fmt.Errorf("wrapped: %w", stt.ErrUnauthorized), CodeServiceNotAllowed},
		{stt.ErrAudioTooShort, CodeNoSpeech},
		{context.DeadlineExceeded, CodeNetwork},
		{stt.NewTranscriptionError("p", "", "overloaded", stt.ErrRateLimited, true), CodeNetwork},
		{errors.New("mystery"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, codeForTranscriptionError(tt.err))
		})
	}
}

func TestDefaultRecorderCommand_MatchesDetectorRate(t *testing.T) {
	rate := strconv.Itoa(audio.DefaultEndpointParams().VAD.SampleRate)
	assert.Contains(t, DefaultRecorderCommand, rate)
	assert.Equal(t, audio.DefaultEndpointParams(), NewCaptureEngine(&fakeTranscriber{}).endpoint)
}

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
)

var (
	// ErrNoPage is returned by RemoteOutput.Load when no page is connected.
	ErrNoPage = errors.New("no page connected")
	// ErrPageGone fails tracks whose page disconnected.
	ErrPageGone = errors.New("page disconnected")
	// ErrPageAudio wraps an audio element failure reported by the page.
	ErrPageAudio = errors.New("page audio error")
)

// frameSink is a connected page able to receive frames.
type frameSink interface {
	ID() string
	SendFrame(typ string, data any) error
}

// RemoteOutput is a playback.Output that plays clips in the page's audio
// element. The most recently connected page is the sink; readiness and
// completion come back as audio.* frames.
type RemoteOutput struct {
	mu     sync.Mutex
	sink   frameSink
	tracks map[string]*remoteTrack
}

type remoteTrack struct {
	*playback.SignalTrack
	handle string
	sinkID string
}

// NewRemoteOutput creates an output with no page attached.
func NewRemoteOutput() *RemoteOutput {
	return &RemoteOutput{tracks: make(map[string]*remoteTrack)}
}

// Load implements playback.Output.
func (o *RemoteOutput) Load(_ context.Context, clip playback.Clip) (playback.Track, error) {
	o.mu.Lock()
	sink := o.sink
	if sink == nil {
		o.mu.Unlock()
		return nil, ErrNoPage
	}
	handle := uuid.NewString()
	t := &remoteTrack{handle: handle, sinkID: sink.ID()}
	t.SignalTrack = playback.NewSignalTrack(&remoteControl{out: o, sink: sink, handle: handle})
	o.tracks[handle] = t
	o.mu.Unlock()

	err := sink.SendFrame(FrameAudioLoad, AudioLoadPayload{
		Handle:     handle,
		MessageID:  clip.MessageID,
		MIMEType:   clip.MIMEType,
		Audio:      clip.Data,
		DurationMS: clip.Duration.Milliseconds(),
	})
	if err != nil {
		o.forget(handle)
		return nil, fmt.Errorf("send clip to page: %w", err)
	}
	return t, nil
}

// Signal applies an audio.* frame from the page with the given sink id.
// Frames for unknown handles, or from another page, are ignored.
func (o *RemoteOutput) Signal(sinkID, typ string, sig AudioSignal) {
	o.mu.Lock()
	t, ok := o.tracks[sig.Handle]
	if ok && t.sinkID != sinkID {
		ok = false
	}
	if ok && typ != FrameAudioReady {
		delete(o.tracks, sig.Handle)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	switch typ {
	case FrameAudioReady:
		t.MarkReady()
	case FrameAudioEnded:
		t.MarkDone(nil)
	case FrameAudioError:
		msg := sig.Message
		if msg == "" {
			msg = "unknown"
		}
		t.MarkDone(fmt.Errorf("%w: %s", ErrPageAudio, msg))
	}
}

// Attach makes sink the page that receives new clips.
func (o *RemoteOutput) Attach(sink frameSink) {
	o.mu.Lock()
	o.sink = sink
	o.mu.Unlock()
}

// Detach removes sink and fails its pending tracks. It reports whether sink
// was the current one.
func (o *RemoteOutput) Detach(sink frameSink) bool {
	o.mu.Lock()
	current := o.sink != nil && o.sink.ID() == sink.ID()
	if current {
		o.sink = nil
	}
	var orphaned []*remoteTrack
	for h, t := range o.tracks {
		if t.sinkID == sink.ID() {
			orphaned = append(orphaned, t)
			delete(o.tracks, h)
		}
	}
	o.mu.Unlock()

	for _, t := range orphaned {
		t.MarkDone(ErrPageGone)
	}
	return current
}

// Pending returns the number of tracks awaiting completion.
func (o *RemoteOutput) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.tracks)
}

func (o *RemoteOutput) forget(handle string) {
	o.mu.Lock()
	delete(o.tracks, handle)
	o.mu.Unlock()
}

// remoteControl forwards track commands to the page.
type remoteControl struct {
	out    *RemoteOutput
	sink   frameSink
	handle string
}

func (c *remoteControl) Start() error {
	return c.sink.SendFrame(FrameAudioPlay, AudioHandle{Handle: c.handle})
}

func (c *remoteControl) Pause() error {
	return c.sink.SendFrame(FrameAudioPause, AudioHandle{Handle: c.handle})
}

func (c *remoteControl) Resume() error {
	return c.sink.SendFrame(FrameAudioResume, AudioHandle{Handle: c.handle})
}

func (c *remoteControl) Stop() error {
	c.out.forget(c.handle)
	return c.sink.SendFrame(FrameAudioStop, AudioHandle{Handle: c.handle})
}

package playback

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/deathnote2501/fia-v3.0-sub001/runtime/logger"
)

// DefaultPlayerCommand plays encoded audio from stdin without a window.
var DefaultPlayerCommand = []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "error", "-i", "pipe:0"}

// Bound on waiting for a killed player's output pipes to close.
const playerWaitDelay = time.Second

// ErrPauseUnsupported is returned on platforms where a player process cannot
// be suspended.
var ErrPauseUnsupported = errors.New("pause not supported on this platform")

// CommandOutput plays clips by piping them into an external player process.
// Pause and resume suspend and continue the process.
type CommandOutput struct {
	command []string
}

// NewCommandOutput creates an output running command (argv form). An empty
// command selects DefaultPlayerCommand.
func NewCommandOutput(command ...string) *CommandOutput {
	if len(command) == 0 {
		command = DefaultPlayerCommand
	}
	return &CommandOutput{command: command}
}

// Command returns the player argv.
func (o *CommandOutput) Command() []string {
	return append([]string(nil), o.command...)
}

// Load resolves the player binary and prepares the process. The track is
// ready as soon as the player is known to exist; the process starts on
// Track.Start.
func (o *CommandOutput) Load(ctx context.Context, clip Clip) (Track, error) {
	path, err := exec.LookPath(o.command[0])
	if err != nil {
		return nil, fmt.Errorf("audio player %q not found: %w", o.command[0], err)
	}

	ctl := &processControl{
		path:  path,
		args:  o.command[1:],
		audio: clip.Data,
	}
	track := NewSignalTrack(ctl)
	ctl.track = track
	track.MarkReady()

	logger.DebugContext(logger.WithMessageID(ctx, clip.MessageID), "Audio loaded for player",
		"player", o.command[0], "bytes", len(clip.Data), "mime_type", clip.MIMEType)
	return track, nil
}

type processControl struct {
	path  string
	args  []string
	audio []byte
	track *SignalTrack

	mu      sync.Mutex
	cmd     *exec.Cmd
	stopped bool
}

func (p *processControl) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd != nil {
		return nil
	}

	var stderr bytes.Buffer
	cmd := exec.Command(p.path, p.args...)
	cmd.Stdin = bytes.NewReader(p.audio)
	cmd.Stderr = &stderr
	cmd.WaitDelay = playerWaitDelay
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}
	p.cmd = cmd

	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		stopped := p.stopped
		p.mu.Unlock()
		if stopped || err == nil {
			p.track.MarkDone(nil)
			return
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		p.track.MarkDone(fmt.Errorf("player exited: %w", err))
	}()
	return nil
}

func (p *processControl) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return suspendProcess(p.cmd.Process.Pid)
}

func (p *processControl) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	return continueProcess(p.cmd.Process.Pid)
}

func (p *processControl) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	// A suspended process must be continued before it can handle the kill.
	_ = continueProcess(p.cmd.Process.Pid)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

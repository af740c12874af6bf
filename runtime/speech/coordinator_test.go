package speech

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/deathnote2501/fia-v3.0-sub001/pkg/errors"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/events"
	"github.com/deathnote2501/fia-v3.0-sub001/runtime/playback"
)

func TestPlay_ConcurrentCallsShareOneSynthesis(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "Bonjour")
	h.synth.hold()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.coord.Play(context.Background(), "m1")
		}(i)
	}

	waitStarted(t, h.synth)
	// Give the second caller time to join the in-flight call.
	time.Sleep(20 * time.Millisecond)
	h.synth.release()
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, h.synth.callCount())
	assert.Equal(t, 1, h.coord.store.Len())
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("m1"))
}

func TestPlay_StartingAnotherMessageStopsThePreviousFirst(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a", "first")
	h.addAssistant(t, "b", "second")

	require.NoError(t, h.coord.Play(context.Background(), "a"))
	require.NoError(t, h.coord.Play(context.Background(), "b"))

	got := h.log.statuses()
	stoppedA := indexOf(got, "a:stopped")
	playingB := indexOf(got, "b:playing")
	require.NotEqual(t, -1, stoppedA, "statuses: %v", got)
	require.NotEqual(t, -1, playingB, "statuses: %v", got)
	assert.Less(t, stoppedA, playingB)
	assert.Equal(t, playback.StatusNone, h.coord.Status("a"))
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("b"))
}

func TestPlay_AlreadyPlayingIsNoop(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a", "first")

	require.NoError(t, h.coord.Play(context.Background(), "a"))
	before := len(h.log.statuses())
	require.NoError(t, h.coord.Play(context.Background(), "a"))

	assert.Len(t, h.log.statuses(), before)
	assert.Equal(t, 1, h.synth.callCount())
}

func TestPlay_PausedResumes(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a", "first")

	require.NoError(t, h.coord.Play(context.Background(), "a"))
	require.NoError(t, h.coord.Pause("a"))
	assert.Equal(t, playback.StatusPaused, h.coord.Status("a"))

	require.NoError(t, h.coord.Play(context.Background(), "a"))
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("a"))
	assert.Equal(t, 1, h.synth.callCount())
}

func TestPlay_UnknownMessage(t *testing.T) {
	h := newHarness(t, fastConfig())

	err := h.coord.Play(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrUnknownMessage)
	assert.Zero(t, h.synth.callCount())
}

func TestGenerateAndPlay_ThenPlayUsesCachedRecord(t *testing.T) {
	h := newHarness(t, fastConfig())

	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", false))
	assert.Equal(t, playback.StatusNone, h.coord.Status("m1"))

	require.NoError(t, h.coord.Play(context.Background(), "m1"))
	assert.Equal(t, 1, h.synth.callCount())
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("m1"))

	rec, ok := h.coord.Record("m1")
	require.True(t, ok)
	assert.Equal(t, "Salut", rec.SourceText)
	assert.Equal(t, DefaultVoice, rec.Voice)
	assert.Equal(t, DefaultLanguage, rec.Language)
}

func TestGenerateAndPlay_DisabledModeDowngradesAutoPlay(t *testing.T) {
	h := newHarness(t, fastConfig())

	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", true))

	assert.Equal(t, 1, h.synth.callCount())
	assert.True(t, h.coord.store.Has("m1"))
	assert.Equal(t, playback.StatusNone, h.coord.Status("m1"))
}

func TestGenerateAndPlay_AutoPlaysWhenEnabled(t *testing.T) {
	h := newHarness(t, fastConfig())
	require.NoError(t, h.coord.SetMode(context.Background(), true))

	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", true))
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("m1"))
}

func TestGenerateAndPlay_EmptyInputIsIgnored(t *testing.T) {
	h := newHarness(t, fastConfig())

	for _, text := range []string{"", "   \n\t", "<p> </p>"} {
		require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", text, true))
	}
	assert.Zero(t, h.synth.callCount())
	assert.Zero(t, h.coord.store.Len())
}

func TestGenerateAndPlay_SendsCleanedTextAndCurrentVoice(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.coord.SetVoice("alloy")
	h.coord.SetLanguage("en-US")

	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "**Bold** and <i>markup</i>", false))

	h.synth.mu.Lock()
	texts := append([]string(nil), h.synth.texts...)
	h.synth.mu.Unlock()
	assert.Equal(t, []string{"Bold and markup"}, texts)

	rec, ok := h.coord.Record("m1")
	require.True(t, ok)
	assert.Equal(t, "alloy", rec.Voice)
	assert.Equal(t, "en-US", rec.Language)
}

func TestGenerateAndPlay_FailureIsNotCachedAndRetries(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.synth.failOn("Salut", errBoom)

	err := h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", false)
	require.ErrorIs(t, err, ErrGenerationFailed)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, pkgerrors.ComponentCoordinator, pkgerrors.ComponentOf(err))
	assert.False(t, h.coord.store.Has("m1"))

	failed := h.log.ofType(events.EventGenerationFailed)
	require.Len(t, failed, 1)
	assert.Equal(t, "m1", failed[0].MessageID)

	h.synth.failOn("Salut", nil)
	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", false))
	assert.Equal(t, 2, h.synth.callCount())
	assert.True(t, h.coord.store.Has("m1"))
	assert.Len(t, h.log.ofType(events.EventGenerationCompleted), 1)
}

func TestGenerateAndPlay_CallerCancelDoesNotAbortGeneration(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.synth.hold()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.coord.GenerateAndPlay(ctx, "m1", "Salut", false) }()

	waitStarted(t, h.synth)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	h.synth.release()
	require.Eventually(t, func() bool { return h.coord.store.Has("m1") }, 2*time.Second, 5*time.Millisecond)
}

func TestRemoveMessage_DuringGenerationDiscardsAudio(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "Salut")
	h.synth.hold()

	done := make(chan error, 1)
	go func() { done <- h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", false) }()

	waitStarted(t, h.synth)
	h.coord.RemoveMessage("m1")
	h.synth.release()

	require.NoError(t, <-done)
	assert.False(t, h.coord.store.Has("m1"))
	assert.Empty(t, h.log.ofType(events.EventGenerationCompleted))
}

func TestRemoveMessage_StopsPlaybackAndDropsRecord(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "Salut")
	require.NoError(t, h.coord.Play(context.Background(), "m1"))

	h.coord.RemoveMessage("m1")

	assert.Equal(t, playback.StatusNone, h.coord.Status("m1"))
	_, ok := h.coord.Record("m1")
	assert.False(t, ok)
	assert.False(t, h.coord.Conversation().Has("m1"))
}

func TestAddMessage_EditedTextInvalidatesRecord(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "v1")
	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "m1", "v1", false))

	h.addAssistant(t, "m1", "v1")
	assert.True(t, h.coord.store.Has("m1"))

	h.addAssistant(t, "m1", "v2")
	assert.False(t, h.coord.store.Has("m1"))
}

func TestPlay_EditDuringGenerationPlaysCurrentText(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "v1")
	h.synth.hold()

	done := make(chan error, 1)
	go func() { done <- h.coord.Play(context.Background(), "m1") }()
	require.Equal(t, "v1", waitStarted(t, h.synth))

	h.addAssistant(t, "m1", "v2")
	h.synth.release()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Play did not return")
	}

	rec, ok := h.coord.Record("m1")
	require.True(t, ok)
	assert.Equal(t, "v2", rec.SourceText)
	assert.Equal(t, []byte("audio:v2"), rec.Audio)
	assert.Equal(t, []string{"v1", "v2"}, h.synth.calledWith())
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("m1"))
	assert.Len(t, h.log.ofType(events.EventGenerationCompleted), 1)
}

func TestGenerateAndPlay_ReAddedMessageDoesNotKeepOldAudio(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "v1")
	h.synth.hold()

	done := make(chan error, 1)
	go func() { done <- h.coord.GenerateAndPlay(context.Background(), "m1", "v1", false) }()
	waitStarted(t, h.synth)

	h.coord.RemoveMessage("m1")
	h.addAssistant(t, "m1", "v2")
	h.synth.release()

	require.NoError(t, <-done)
	rec, ok := h.coord.Record("m1")
	require.True(t, ok)
	assert.Equal(t, "v2", rec.SourceText)
}

func TestGenerateAndPlay_EditToBlankStoresNothing(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "m1", "v1")
	h.synth.hold()

	done := make(chan error, 1)
	go func() { done <- h.coord.GenerateAndPlay(context.Background(), "m1", "v1", false) }()
	waitStarted(t, h.synth)

	h.addAssistant(t, "m1", "  ")
	h.synth.release()

	require.NoError(t, <-done)
	assert.False(t, h.coord.store.Has("m1"))
	assert.Equal(t, 1, h.synth.callCount())
}

func TestAddMessage_AutoPlaysNewAssistantMessageWhenEnabled(t *testing.T) {
	h := newHarness(t, fastConfig())
	require.NoError(t, h.coord.SetMode(context.Background(), true))

	require.NoError(t, h.coord.AddMessage(context.Background(), Message{ID: "u1", Role: RoleUser, Text: "question"}))
	assert.Zero(t, h.synth.callCount())

	h.addAssistant(t, "a1", "réponse")
	assert.Equal(t, 1, h.synth.callCount())
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("a1"))
}

func TestSetMode_EnableSweepsBacklogAndPlaysLatest(t *testing.T) {
	h := newHarness(t, fastConfig())
	ctx := context.Background()
	h.addAssistant(t, "a1", "one")
	require.NoError(t, h.coord.AddMessage(ctx, Message{ID: "u1", Role: RoleUser, Text: "question"}))
	h.addAssistant(t, "a2", "   ")
	h.addAssistant(t, "a3", "three")
	h.addAssistant(t, "a4", "four")
	h.addAssistant(t, "a5", "five")
	// Already generated, must not be requested again.
	require.NoError(t, h.coord.GenerateAndPlay(ctx, "a3", "three", false))

	require.NoError(t, h.coord.SetMode(ctx, true))

	assert.Equal(t, 4, h.synth.callCount())
	h.synth.mu.Lock()
	assert.Equal(t, []string{"three", "one", "four", "five"}, h.synth.texts)
	h.synth.mu.Unlock()
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("a5"))

	done := h.log.ofType(events.EventBacklogCompleted)
	require.Len(t, done, 1)
	data := done[0].Data.(events.BacklogCompletedData)
	assert.Equal(t, 3, data.Processed)
	assert.Equal(t, 1, data.Skipped)
	assert.Zero(t, data.Failed)
	assert.Equal(t, "a5", data.AutoPlayed)

	modes := h.log.ofType(events.EventModeChanged)
	require.Len(t, modes, 1)
	assert.True(t, modes[0].Data.(events.ModeChangedData).Enabled)
}

func TestSetMode_EnableWithNothingToDoPlaysNothing(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a1", "one")
	require.NoError(t, h.coord.GenerateAndPlay(context.Background(), "a1", "one", false))

	require.NoError(t, h.coord.SetMode(context.Background(), true))

	assert.Equal(t, 1, h.synth.callCount())
	_, active := h.player.Active()
	assert.False(t, active)
}

func TestSetMode_SameValueIsNoop(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a1", "one")

	require.NoError(t, h.coord.SetMode(context.Background(), false))
	assert.Empty(t, h.log.ofType(events.EventModeChanged))

	require.NoError(t, h.coord.SetMode(context.Background(), true))
	require.NoError(t, h.coord.SetMode(context.Background(), true))
	assert.Len(t, h.log.ofType(events.EventModeChanged), 1)
	assert.Len(t, h.log.ofType(events.EventBacklogCompleted), 1)
	assert.Equal(t, 1, h.synth.callCount())
}

func TestSetMode_DisableStopsPlaybackButManualPlayWorks(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a1", "one")
	require.NoError(t, h.coord.SetMode(context.Background(), true))
	require.Equal(t, playback.StatusPlaying, h.coord.Status("a1"))

	require.NoError(t, h.coord.SetMode(context.Background(), false))

	assert.False(t, h.coord.Mode().Enabled())
	assert.Equal(t, playback.StatusNone, h.coord.Status("a1"))
	assert.Contains(t, h.log.statuses(), "a1:stopped")

	require.NoError(t, h.coord.Play(context.Background(), "a1"))
	assert.Equal(t, playback.StatusPlaying, h.coord.Status("a1"))
	assert.Equal(t, 1, h.synth.callCount())
}

func TestSetMode_DisableDoesNotCancelInFlightGeneration(t *testing.T) {
	h := newHarness(t, fastConfig())
	require.NoError(t, h.coord.SetMode(context.Background(), true))
	h.synth.hold()

	done := make(chan error, 1)
	go func() { done <- h.coord.GenerateAndPlay(context.Background(), "m1", "Salut", true) }()
	waitStarted(t, h.synth)

	require.NoError(t, h.coord.SetMode(context.Background(), false))
	h.synth.release()

	require.NoError(t, <-done)
	assert.True(t, h.coord.store.Has("m1"))
	assert.Equal(t, playback.StatusNone, h.coord.Status("m1"))
}

func TestClose(t *testing.T) {
	h := newHarness(t, fastConfig())
	h.addAssistant(t, "a1", "one")
	require.NoError(t, h.coord.Play(context.Background(), "a1"))

	h.coord.Close()
	h.coord.Close()

	assert.Equal(t, playback.StatusNone, h.coord.Status("a1"))
	assert.True(t, errors.Is(h.coord.Play(context.Background(), "a1"), ErrClosed))
	assert.ErrorIs(t, h.coord.SetMode(context.Background(), true), ErrClosed)
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{BatchPause: -time.Second}
	cfg.applyDefaults()
	assert.Equal(t, DefaultBatchSize, cfg.BatchSize)
	assert.Zero(t, cfg.BatchPause)
	assert.Equal(t, DefaultGenerationTimeout, cfg.GenerationTimeout)
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}

package playback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullOutput_EndsAfterDuration(t *testing.T) {
	track, err := NullOutput{}.Load(context.Background(), Clip{MessageID: "m1", Data: []byte("x"), Duration: 30 * time.Millisecond})
	require.NoError(t, err)

	select {
	case <-track.Ready():
	default:
		t.Fatal("track is not ready after load")
	}

	require.NoError(t, track.Start())
	select {
	case <-track.Done():
		assert.NoError(t, track.Err())
	case <-time.After(2 * time.Second):
		t.Fatal("track did not end")
	}
}

func TestNullOutput_PauseHoldsTheClock(t *testing.T) {
	track, err := NullOutput{}.Load(context.Background(), Clip{MessageID: "m1", Data: []byte("x"), Duration: 50 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, track.Start())
	require.NoError(t, track.Pause())

	select {
	case <-track.Done():
		t.Fatal("paused track ended")
	case <-time.After(150 * time.Millisecond):
	}

	require.NoError(t, track.Resume())
	select {
	case <-track.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("resumed track did not end")
	}
}

func TestNullOutput_StopEndsTrack(t *testing.T) {
	track, err := NullOutput{}.Load(context.Background(), Clip{MessageID: "m1", Data: []byte("x"), Duration: time.Hour})
	require.NoError(t, err)
	require.NoError(t, track.Start())
	require.NoError(t, track.Stop())

	select {
	case <-track.Done():
	default:
		t.Fatal("stopped track is still open")
	}
}

func TestController_WithNullOutput(t *testing.T) {
	c := NewController(NullOutput{}, WithReadyTimeout(time.Second))
	require.NoError(t, c.Play(context.Background(), Clip{MessageID: "m1", Data: []byte("x"), Duration: 300 * time.Millisecond}))
	assert.Equal(t, StatusPlaying, c.StatusOf("m1"))
	assert.Eventually(t, func() bool { return c.StatusOf("m1") == StatusNone }, 2*time.Second, 5*time.Millisecond)
}

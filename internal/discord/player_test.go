package discord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayerSendsFramesThenIdles(t *testing.T) {
	send := make(chan []byte, 8)
	var speaking []bool
	p := NewPlayer(send, func(on bool) error {
		speaking = append(speaking, on)
		return nil
	})
	idle := make(chan struct{}, 1)
	p.OnIdle(func() { idle <- struct{}{} })

	require.NoError(t, p.Play([][]byte{{1}, {2}, {3}}))
	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("player never went idle")
	}
	assert.Equal(t, []byte{1}, <-send)
	assert.Equal(t, []byte{2}, <-send)
	assert.Equal(t, []byte{3}, <-send)
	assert.Equal(t, []bool{true}, speaking)

	p.Close()
	assert.Equal(t, []bool{true, false}, speaking)
}

func TestPlayerRejectsSecondPlay(t *testing.T) {
	send := make(chan []byte)
	p := NewPlayer(send, nil)

	require.NoError(t, p.Play([][]byte{{1}}))
	assert.ErrorIs(t, p.Play([][]byte{{2}}), ErrPlayerBusy)
	<-send
}

func TestPlayerCloseStopsPlayback(t *testing.T) {
	send := make(chan []byte)
	p := NewPlayer(send, nil)
	idle := make(chan struct{}, 1)
	p.OnIdle(func() { idle <- struct{}{} })

	require.NoError(t, p.Play([][]byte{{1}, {2}}))
	p.Close()
	select {
	case <-idle:
		t.Fatal("idle fired after close")
	case <-time.After(50 * time.Millisecond):
	}
	assert.ErrorIs(t, p.Play([][]byte{{3}}), ErrConnectionClosed)
}

func TestPlayerTimesOutOnStalledConnection(t *testing.T) {
	send := make(chan []byte)
	p := NewPlayer(send, nil)
	p.frameTimeout = 10 * time.Millisecond
	idle := make(chan struct{}, 1)
	p.OnIdle(func() { idle <- struct{}{} })

	require.NoError(t, p.Play([][]byte{{1}}))
	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("player did not give up on a stalled connection")
	}
}

package session_test

import (
	"testing"

	"github.com/mediaroom/producer/producer/media"
	"github.com/mediaroom/producer/producer/session"
	"github.com/stretchr/testify/assert"
)

func TestCapabilities_Allows(t *testing.T) {
	t.Parallel()

	caps := session.Capabilities{Mic: true, Screen: true}

	assert.True(t, caps.Allows(media.KindMic))
	assert.False(t, caps.Allows(media.KindWebcam))
	assert.False(t, caps.Allows(media.KindExtraVideo))
	assert.True(t, caps.Allows(media.KindScreen))
	assert.True(t, caps.Allows(media.KindScreenAudio))
	assert.False(t, caps.Allows("other"))
}

func TestState_Flags(t *testing.T) {
	t.Parallel()

	s := session.New(session.Capabilities{Mic: true})

	s.SetFlags(media.KindMic, true, false)
	assert.Equal(t, session.KindState{Enabled: true}, s.Kind(media.KindMic))

	s.SetMuted(media.KindMic, true)
	s.SetEnabled(media.KindWebcam, true)

	snap := s.Snapshot()
	assert.Equal(t, session.KindState{Enabled: true, Muted: true}, snap.Kinds[media.KindMic])
	assert.Equal(t, session.KindState{Enabled: true}, snap.Kinds[media.KindWebcam])
	assert.Equal(t, session.KindState{}, snap.Kinds[media.KindExtraVideo])
	assert.Len(t, snap.Kinds, len(media.Kinds))
	assert.True(t, snap.Capabilities.Mic)
}

func TestState_Progress(t *testing.T) {
	t.Parallel()

	s := session.New(session.Capabilities{})

	endA := s.BeginProgress(media.ModalityVideo)
	endB := s.BeginProgress(media.ModalityVideo)

	assert.True(t, s.InProgress(media.ModalityVideo))
	assert.False(t, s.InProgress(media.ModalityAudio))

	endA()
	endA()
	assert.True(t, s.InProgress(media.ModalityVideo))

	endB()
	assert.False(t, s.InProgress(media.ModalityVideo))
}

func TestState_Subscribe(t *testing.T) {
	t.Parallel()

	s := session.New(session.Capabilities{})

	ch, unsubscribe := s.Subscribe()

	s.SetEnabled(media.KindMic, true)
	s.SetEnabled(media.KindWebcam, true)

	snap := <-ch
	assert.True(t, snap.Kinds[media.KindMic].Enabled)
	assert.True(t, snap.Kinds[media.KindWebcam].Enabled)

	s.SetEnabled(media.KindWebcam, true)

	select {
	case <-ch:
		t.Fatal("unchanged flags must not notify")
	default:
	}

	unsubscribe()
	unsubscribe()

	s.SetEnabled(media.KindMic, false)

	select {
	case <-ch:
		t.Fatal("unsubscribed channel must not receive")
	default:
	}
}

func TestState_Preview(t *testing.T) {
	t.Parallel()

	s := session.New(session.Capabilities{})

	s.SetPreview(media.KindWebcam, "cam-1")
	assert.Equal(t, "cam-1", s.Preview(media.KindWebcam))
	assert.Equal(t, map[media.Kind]string{media.KindWebcam: "cam-1"}, s.Snapshot().Previews)

	s.SetPreview(media.KindWebcam, "")
	assert.Equal(t, "", s.Preview(media.KindWebcam))
	assert.Empty(t, s.Snapshot().Previews)
}

package audio

import (
	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
)

// Output is the playback sink behind the engine. Production code uses the
// speaker device; tests substitute an in-memory fake so no audio hardware is
// touched.
type Output interface {
	// Init prepares the sink for the given sample rate, dropping anything
	// queued. It may be called again when a buffer with a new rate loads.
	Init(sr beep.SampleRate, bufferSize int) error
	// Play schedules a streamer. The engine guarantees Clear was called
	// first, so the sink never mixes two sources.
	Play(s beep.Streamer)
	// Clear drops all scheduled streamers immediately.
	Clear()
	// Lock/Unlock guard mutation of a streamer the sink is reading from.
	Lock()
	Unlock()
}

// SpeakerOutput plays through the default audio device via beep's speaker.
type SpeakerOutput struct{}

func (SpeakerOutput) Init(sr beep.SampleRate, bufferSize int) error {
	return speaker.Init(sr, bufferSize)
}

func (SpeakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (SpeakerOutput) Clear()               { speaker.Clear() }
func (SpeakerOutput) Lock()                { speaker.Lock() }
func (SpeakerOutput) Unlock()              { speaker.Unlock() }

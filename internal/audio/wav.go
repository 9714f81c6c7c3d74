package audio

import (
	"fmt"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// ExportWAV writes the current buffer to path as a 16-bit PCM WAV file.
func (e *Engine) ExportWAV(path string) error {
	e.mu.Lock()
	buf := e.buffer
	format := e.format
	e.mu.Unlock()

	if buf == nil {
		return ErrNoBuffer
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer f.Close()

	out := beep.Format{
		SampleRate:  format.SampleRate,
		NumChannels: format.NumChannels,
		Precision:   2,
	}
	if err := wav.Encode(f, buf.Streamer(0, buf.Len()), out); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	return f.Close()
}

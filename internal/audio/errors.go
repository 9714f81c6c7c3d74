package audio

import (
	"errors"
	"fmt"
)

// DecodeError reports bytes that are not a supported audio container or
// codec. The previously loaded buffer is left untouched.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode audio: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode audio: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FetchError reports a network failure or non-2xx response while fetching
// remote audio.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: http %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

var (
	// ErrNoBuffer is returned by playback operations before any load.
	ErrNoBuffer = errors.New("no audio buffer loaded")

	// ErrSuperseded is returned by a remote load that completed after a
	// newer load was issued; its bytes are discarded so the most recently
	// requested load determines the resulting buffer.
	ErrSuperseded = errors.New("load superseded by a newer request")
)

package audio

import (
	"bytes"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

// decodeBuffer sniffs the container by magic bytes and decodes the whole
// stream into a PCM buffer.
func decodeBuffer(data []byte) (*beep.Buffer, beep.Format, error) {
	r := io.NopCloser(bytes.NewReader(data))

	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch {
	case isWAV(data):
		stream, format, err = wav.Decode(r)
	case isOgg(data):
		stream, format, err = vorbis.Decode(r)
	case isFLAC(data):
		stream, format, err = flac.Decode(r)
	case isMP3(data):
		stream, format, err = mp3.Decode(r)
	default:
		return nil, beep.Format{}, &DecodeError{Reason: "unsupported audio container"}
	}
	if err != nil {
		return nil, beep.Format{}, &DecodeError{Reason: "malformed audio stream", Err: err}
	}
	defer stream.Close()

	buf := beep.NewBuffer(format)
	buf.Append(stream)
	if err := stream.Err(); err != nil {
		return nil, beep.Format{}, &DecodeError{Reason: "truncated audio stream", Err: err}
	}
	return buf, format, nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 &&
		bytes.Equal(data[:4], []byte("RIFF")) &&
		bytes.Equal(data[8:12], []byte("WAVE"))
}

func isOgg(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("OggS"))
}

func isFLAC(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("fLaC"))
}

// isMP3 accepts an ID3 tag or a bare MPEG frame sync.
func isMP3(data []byte) bool {
	if len(data) >= 3 && bytes.Equal(data[:3], []byte("ID3")) {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

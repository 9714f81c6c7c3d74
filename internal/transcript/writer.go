package transcript

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nipun-das/ai-dubbing-tool/internal/model"
)

// Transcript file writers for the dubbed dialogue. All writers emit the
// translated text in timeline order; files are written atomically (temp
// file + rename) to avoid partial writes.

// WriteText writes a plain text transcript with one sentence per line, each
// prefixed by its start timestamp in [HH:MM:SS] format.
func WriteText(path string, sentences []model.Sentence) error {
	var b strings.Builder
	for _, s := range sentences {
		ts := formatTextTimestamp(secondsToDuration(s.StartTime))
		fmt.Fprintf(&b, "[%s] %s\n", ts, s.TranslatedText)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteSRT writes a SubRip (.srt) subtitle file. Each sentence is numbered
// sequentially with start/end timestamps in HH:MM:SS,mmm format.
func WriteSRT(path string, sentences []model.Sentence) error {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n",
			formatSRTTimestamp(secondsToDuration(s.StartTime)),
			formatSRTTimestamp(secondsToDuration(s.EndTime())))
		fmt.Fprintf(&b, "%s\n", s.TranslatedText)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteVTT writes a WebVTT (.vtt) subtitle file preceded by the WEBVTT
// header, with start/end timestamps in HH:MM:SS.mmm format.
func WriteVTT(path string, sentences []model.Sentence) error {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, s := range sentences {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s --> %s\n",
			formatVTTTimestamp(secondsToDuration(s.StartTime)),
			formatVTTTimestamp(secondsToDuration(s.EndTime())))
		fmt.Fprintf(&b, "%s\n", s.TranslatedText)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteAll writes the transcript in every requested format. basePath is the
// file path without extension. Supported formats: "txt", "srt", "vtt". If
// formats is nil or empty, defaults to ["srt"]. Returns a combined error
// listing all failures.
func WriteAll(basePath string, sentences []model.Sentence, formats []string) error {
	if len(formats) == 0 {
		formats = []string{"srt"}
	}
	var errs []string
	for _, f := range formats {
		var err error
		switch f {
		case "txt":
			err = WriteText(basePath+".txt", sentences)
		case "srt":
			err = WriteSRT(basePath+".srt", sentences)
		case "vtt":
			err = WriteVTT(basePath+".vtt", sentences)
		default:
			errs = append(errs, fmt.Sprintf("unknown format %q", f))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("transcript write errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// secondsToDuration rounds to the nearest millisecond so timestamps derived
// from float arithmetic (e.g. start + duration) don't truncate to 999.
func secondsToDuration(s float64) time.Duration {
	return time.Duration(math.Round(s*1000)) * time.Millisecond
}

// formatTextTimestamp formats a duration as HH:MM:SS for plain text output.
func formatTextTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatSRTTimestamp formats a duration as HH:MM:SS,mmm (SRT subtitle format).
func formatSRTTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatVTTTimestamp formats a duration as HH:MM:SS.mmm (WebVTT format).
func formatVTTTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// atomicWrite writes data to path atomically using a temp file + rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "transcript-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing transcript: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing transcript: %w", err)
	}
	tmpFile = nil // prevent defer cleanup

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming transcript: %w", err)
	}
	return nil
}

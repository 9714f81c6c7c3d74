package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriteMetadata_Basic(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "dubbed_interview.wav")
	if err := os.WriteFile(exportPath, []byte("fake"), 0644); err != nil {
		t.Fatal(err)
	}

	meta := &ExportMetadata{
		Version:          "1.0.0",
		SessionID:        "abc123",
		ExportedAt:       time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC),
		SourceFile:       "interview.mp4",
		InputLanguage:    "hi",
		WhisperModel:     "base",
		VoiceQualityMode: "high_quality",
		SentenceCount:    12,
		RefinedSentences: []string{"sentence_3", "sentence_7"},
		DurationSeconds:  94.5,
		OutputFile:       exportPath,
	}

	if err := WriteMetadata(exportPath, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	metaPath := filepath.Join(dir, "dubbed_interview.meta.json")
	data, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta file: %v", err)
	}

	var got ExportMetadata
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.SessionID != "abc123" {
		t.Errorf("session_id = %q, want %q", got.SessionID, "abc123")
	}
	if got.InputLanguage != "hi" {
		t.Errorf("input_language = %q, want %q", got.InputLanguage, "hi")
	}
	if got.SentenceCount != 12 {
		t.Errorf("sentence_count = %d, want 12", got.SentenceCount)
	}
	if len(got.RefinedSentences) != 2 {
		t.Errorf("refined_sentences len = %d, want 2", len(got.RefinedSentences))
	}
	if got.DurationSeconds != 94.5 {
		t.Errorf("duration_seconds = %g, want 94.5", got.DurationSeconds)
	}
}

func TestWriteMetadata_OmitsEmptyRefined(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "dubbed.wav")
	if err := os.WriteFile(exportPath, []byte("fake"), 0644); err != nil {
		t.Fatal(err)
	}

	meta := &ExportMetadata{Version: "dev", OutputFile: exportPath}
	if err := WriteMetadata(exportPath, meta); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "dubbed.meta.json"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["refined_sentences"]; ok {
		t.Error("expected no 'refined_sentences' field when none are refined")
	}
}

func TestReadMetadata_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "dubbed.wav")
	if err := os.WriteFile(exportPath, []byte("fake"), 0644); err != nil {
		t.Fatal(err)
	}

	want := &ExportMetadata{
		Version:       "dev",
		SessionID:     "s1",
		WhisperModel:  "medium",
		SentenceCount: 3,
		OutputFile:    exportPath,
	}
	if err := WriteMetadata(exportPath, want); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	got, err := ReadMetadata(exportPath)
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if got.SessionID != want.SessionID || got.WhisperModel != want.WhisperModel ||
		got.SentenceCount != want.SentenceCount {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestMetadataPath(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"dubbed.wav", "dubbed.meta.json"},
		{"/path/to/file.mp3", "/path/to/file.meta.json"},
		{"no-ext", "no-ext.meta.json"},
	}
	for _, tt := range tests {
		if got := metadataPath(tt.input); got != tt.want {
			t.Errorf("metadataPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestWriteMetadata_AtomicNoPartialFile(t *testing.T) {
	// Write to a non-existent directory should fail cleanly.
	badPath := filepath.Join(t.TempDir(), "nonexistent", "sub", "dubbed.wav")
	meta := &ExportMetadata{Version: "dev"}
	if err := WriteMetadata(badPath, meta); err == nil {
		t.Fatal("expected error for non-existent directory")
	}
}

// Package fileutil provides export file utilities: filename sanitization
// and sidecar metadata for exported dubs.
package fileutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ExportMetadata is the sidecar metadata written alongside each exported dub.
type ExportMetadata struct {
	Version          string    `json:"version"`
	SessionID        string    `json:"session_id"`
	ExportedAt       time.Time `json:"exported_at"`
	SourceFile       string    `json:"source_file"`
	InputLanguage    string    `json:"input_language"`
	WhisperModel     string    `json:"whisper_model"`
	VoiceQualityMode string    `json:"voice_quality_mode"`
	SentenceCount    int       `json:"sentence_count"`
	RefinedSentences []string  `json:"refined_sentences,omitempty"`
	DurationSeconds  float64   `json:"duration_seconds"`
	OutputFile       string    `json:"output_file"`
}

// WriteMetadata writes a <basepath>.meta.json sidecar file alongside the
// exported audio. Uses atomic write (temp + rename).
func WriteMetadata(exportPath string, meta *ExportMetadata) error {
	metaPath := metadataPath(exportPath)
	dir := filepath.Dir(metaPath)

	tmpFile, err := os.CreateTemp(dir, "meta-*.tmp")
	if err != nil {
		return fmt.Errorf("create metadata temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	encoder := json.NewEncoder(tmpFile)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(meta); err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync metadata: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close metadata temp: %w", err)
	}
	success = true // prevent defer cleanup

	if err := os.Rename(tmpPath, metaPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads the sidecar for an exported file, if present.
func ReadMetadata(exportPath string) (*ExportMetadata, error) {
	data, err := os.ReadFile(metadataPath(exportPath))
	if err != nil {
		return nil, err
	}
	var meta ExportMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}

// metadataPath returns <basepath>.meta.json for a given export file path.
func metadataPath(exportPath string) string {
	ext := filepath.Ext(exportPath)
	base := exportPath[:len(exportPath)-len(ext)]
	return base + ".meta.json"
}

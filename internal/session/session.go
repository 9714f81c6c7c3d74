// Package session owns one editing session: the sentence timeline, the
// playback engine, the backend client, and the export history. All edits go
// through the session; components never reach into each other directly.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nipun-das/ai-dubbing-tool/internal/audio"
	"github.com/nipun-das/ai-dubbing-tool/internal/backend"
	"github.com/nipun-das/ai-dubbing-tool/internal/config"
	"github.com/nipun-das/ai-dubbing-tool/internal/fileutil"
	"github.com/nipun-das/ai-dubbing-tool/internal/model"
	"github.com/nipun-das/ai-dubbing-tool/internal/refine"
	"github.com/nipun-das/ai-dubbing-tool/internal/transcript"
)

// Config wires a session's collaborators.
type Config struct {
	Client         *backend.Client
	Engine         *audio.Engine
	Settings       backend.Settings
	Presets        []config.Preset
	StrictTimeline bool
	ExportDir      string // where downloaded exports land
	Logger         *logrus.Logger
}

// Session is the single mutable state container of the editor. The mutex
// guards the timeline and bookkeeping fields; the engine carries its own
// lock, and long backend calls run without holding the session lock so
// status reads stay responsive.
type Session struct {
	id        string
	log       *logrus.Entry
	client    *backend.Client
	engine    *audio.Engine
	flow      *refine.Flow
	settings  backend.Settings
	presets   map[string]config.Preset
	strict    bool
	exportDir string

	mu           sync.Mutex
	timeline     *model.Timeline
	sourceFile   string
	outputPath   string // backend path of the complete dubbed mix
	referenceAud string // backend path of the voice reference clip
	lastExported string // filename of the most recent export, this session only
	lastAction   string
	lastError    string
}

// New creates an empty session.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	presets := make(map[string]config.Preset, len(cfg.Presets))
	for _, p := range cfg.Presets {
		presets[p.Name] = p
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		log:       logger.WithField("session", id),
		client:    cfg.Client,
		engine:    cfg.Engine,
		flow:      refine.New(cfg.Client, logger),
		settings:  cfg.Settings,
		presets:   presets,
		strict:    cfg.StrictTimeline,
		exportDir: cfg.ExportDir,
		timeline:  model.NewTimeline(nil),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// StartDub uploads a source file and installs the resulting sentence
// timeline. The upload runs without the session lock held.
func (s *Session) StartDub(ctx context.Context, audioPath string) (*backend.DubResult, error) {
	res, err := s.client.Dub(ctx, audioPath, s.settings)
	if err != nil {
		return nil, err
	}
	if err := s.ApplyResult(filepath.Base(audioPath), res); err != nil {
		return nil, err
	}
	return res, nil
}

// ApplyResult replaces the timeline with a pipeline result's sentences.
func (s *Session) ApplyResult(sourceFile string, res *backend.DubResult) error {
	sentences := make([]model.Sentence, len(res.Sentences))
	for i, sd := range res.Sentences {
		sentences[i] = model.Sentence{
			ID:             sd.ID,
			StartTime:      sd.StartTime,
			Duration:       sd.Duration,
			OriginalText:   sd.OriginalText,
			TranslatedText: sd.TranslatedText,
		}
	}
	tl := model.NewTimeline(sentences)
	if err := tl.Validate(s.strict); err != nil {
		return fmt.Errorf("pipeline result rejected: %w", err)
	}

	s.mu.Lock()
	s.timeline = tl
	s.sourceFile = sourceFile
	s.outputPath = res.OutputAudioPath
	s.referenceAud = res.ReferenceAudioPath
	s.lastExported = ""
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"source":    sourceFile,
		"sentences": len(sentences),
	}).Info("dub result applied")
	return nil
}

// LoadComplete loads the complete dubbed mix into the engine.
func (s *Session) LoadComplete(ctx context.Context) error {
	s.mu.Lock()
	out := s.outputPath
	s.mu.Unlock()
	if out == "" {
		return fmt.Errorf("no dubbed audio available yet")
	}
	_, err := s.engine.LoadRemote(ctx, s.client.DownloadURL(filepath.Base(out)), audio.VariantComplete)
	return err
}

// LoadExported loads the most recent export of this session. Earlier
// sessions' exports are not reachable here; the filename lives only in
// session state.
func (s *Session) LoadExported(ctx context.Context) error {
	s.mu.Lock()
	name := s.lastExported
	s.mu.Unlock()
	if name == "" {
		return fmt.Errorf("nothing exported in this session yet")
	}
	_, err := s.engine.LoadRemote(ctx, s.client.DownloadURL(name), audio.VariantExported)
	return err
}

// LoadSentence loads one sentence's clip, preferring resynthesized audio
// over the original individual clip.
func (s *Session) LoadSentence(ctx context.Context, id string) error {
	_, err := s.loadSentence(ctx, id)
	return err
}

// loadSentence loads the preferred audio for a sentence and returns the
// offset its speech begins at. Resynthesized audio is a full timeline mix,
// so the sentence lives at its own start time; an individual clip starts
// at zero.
func (s *Session) loadSentence(ctx context.Context, id string) (time.Duration, error) {
	s.mu.Lock()
	sen, err := s.timeline.Get(id)
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	u := sen.ModifiedAudioURL
	variant := audio.VariantModified
	startAt := time.Duration(sen.StartTime * float64(time.Second))
	if u == "" {
		u = sen.AudioURL
		variant = audio.VariantIndividual
		startAt = 0
	}
	if u == "" {
		return 0, fmt.Errorf("sentence %s has no audio clip", id)
	}
	if _, err := s.engine.LoadRemote(ctx, s.client.AbsoluteURL(u), variant); err != nil {
		return 0, err
	}
	return startAt, nil
}

// PlaySentence loads a sentence clip and starts playback where its speech
// begins.
func (s *Session) PlaySentence(ctx context.Context, id string) error {
	startAt, err := s.loadSentence(ctx, id)
	if err != nil {
		return err
	}
	return s.engine.PlayFrom(startAt)
}

// Play resumes playback of whatever is loaded.
func (s *Session) Play() error { return s.engine.Play() }

// Pause pauses playback, keeping the position.
func (s *Session) Pause() { s.engine.Pause() }

// SeekSeconds moves the playhead. Out-of-range positions clamp.
func (s *Session) SeekSeconds(sec float64) error {
	return s.engine.Seek(time.Duration(sec * float64(time.Second)))
}

// SetVolume sets linear playback volume in [0, 1].
func (s *Session) SetVolume(v float64) { s.engine.SetVolume(v) }

// SetMuted toggles mute without touching the stored volume.
func (s *Session) SetMuted(m bool) { s.engine.SetMuted(m) }

// UpdateText replaces a sentence's translated text.
func (s *Session) UpdateText(id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Update(id, model.Patch{TranslatedText: &text})
}

// SetTiming adjusts a sentence's start time and duration.
func (s *Session) SetTiming(id string, start, duration float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Update(id, model.Patch{StartTime: &start, Duration: &duration})
}

// Split halves a sentence; returns the new right-half id.
func (s *Session) Split(id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Split(id)
}

// Merge combines two or more sentences into the earliest one.
func (s *Session) Merge(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Merge(ids)
}

// Delete removes a sentence from the timeline.
func (s *Session) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Delete(id)
}

// Reorder applies a new sentence ordering. The id list must be an exact
// permutation of the current timeline.
func (s *Session) Reorder(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Reorder(ids)
}

// Sentences returns the current timeline ordering.
func (s *Session) Sentences() []model.Sentence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Sentences()
}

// RefineParams names a sentence and how to refine it. Preset, when set,
// supplies instruction and style from the configured preset list.
type RefineParams struct {
	SentenceID      string
	Instruction     string
	Style           string
	Preset          string
	UseVoiceCloning bool
}

// Refine runs the two-phase refinement for one sentence. Refined text is
// kept even when audio resynthesis fails; that case surfaces as
// refine.PartialRefinementError.
func (s *Session) Refine(ctx context.Context, p RefineParams) (*refine.Result, error) {
	instruction, style := p.Instruction, p.Style
	if p.Preset != "" {
		preset, ok := s.presets[p.Preset]
		if !ok {
			return nil, fmt.Errorf("unknown refinement preset %q", p.Preset)
		}
		instruction = preset.Instruction
		if style == "" {
			style = preset.Style
		}
	}
	if instruction == "" {
		return nil, fmt.Errorf("refinement needs an instruction or a preset")
	}

	s.mu.Lock()
	ref := s.referenceAud
	orig := s.outputPath
	s.mu.Unlock()

	return s.flow.Run(ctx, lockedTimeline{s}, refine.Params{
		SentenceID:         p.SentenceID,
		Instruction:        instruction,
		Style:              style,
		ReferenceAudioPath: ref,
		OriginalAudioPath:  orig,
		UseVoiceCloning:    p.UseVoiceCloning,
	})
}

// Export renders the final mix from current edits and records its filename
// in session state.
func (s *Session) Export(ctx context.Context) (*backend.ExportResult, error) {
	s.mu.Lock()
	sentences := s.timeline.Sentences()
	ref := s.referenceAud
	s.mu.Unlock()
	if len(sentences) == 0 {
		return nil, fmt.Errorf("nothing to export")
	}

	payload := make([]backend.ExportSentence, len(sentences))
	for i, sen := range sentences {
		payload[i] = backend.ExportSentence{
			ID:             sen.ID,
			StartTime:      sen.StartTime,
			Duration:       sen.Duration,
			TranslatedText: sen.TranslatedText,
		}
	}

	res, err := s.client.Export(ctx, payload, ref)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastExported = res.OutputFilename
	s.mu.Unlock()
	s.log.WithField("file", res.OutputFilename).Info("export rendered")
	return res, nil
}

// DownloadExport fetches the session's latest export into the export
// directory and writes a metadata sidecar next to it. Returns the local path.
func (s *Session) DownloadExport(ctx context.Context) (string, error) {
	s.mu.Lock()
	name := s.lastExported
	source := s.sourceFile
	sentences := s.timeline.Sentences()
	s.mu.Unlock()
	if name == "" {
		return "", fmt.Errorf("nothing exported in this session yet")
	}

	data, err := s.client.Download(ctx, name)
	if err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	base := fileutil.SanitizeForFilename(name[:len(name)-len(ext)])
	path := fileutil.UniquePath(s.exportDir, base, ext)
	if err := writeFile(path, data); err != nil {
		return "", err
	}

	var refined []string
	var total float64
	for _, sen := range sentences {
		if sen.IsRefined {
			refined = append(refined, sen.ID)
		}
		if end := sen.EndTime(); end > total {
			total = end
		}
	}
	meta := &fileutil.ExportMetadata{
		Version:          "1",
		SessionID:        s.id,
		ExportedAt:       time.Now().UTC(),
		SourceFile:       source,
		InputLanguage:    s.settings.InputLanguage,
		WhisperModel:     s.settings.WhisperModel,
		VoiceQualityMode: s.settings.VoiceQualityMode,
		SentenceCount:    len(sentences),
		RefinedSentences: refined,
		DurationSeconds:  total,
		OutputFile:       path,
	}
	if err := fileutil.WriteMetadata(path, meta); err != nil {
		s.log.WithError(err).Warn("metadata sidecar not written")
	}
	return path, nil
}

// WriteTranscript writes the current timeline as subtitle/transcript files.
func (s *Session) WriteTranscript(basePath string, formats []string) error {
	s.mu.Lock()
	sentences := s.timeline.Sentences()
	s.mu.Unlock()
	return transcript.WriteAll(basePath, sentences, formats)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// lockedTimeline exposes the session's timeline to the refinement flow with
// the session lock taken around each call, so the flow's network waits never
// hold the lock.
type lockedTimeline struct{ s *Session }

func (lt lockedTimeline) Get(id string) (model.Sentence, error) {
	lt.s.mu.Lock()
	defer lt.s.mu.Unlock()
	return lt.s.timeline.Get(id)
}

func (lt lockedTimeline) Update(id string, patch model.Patch) error {
	lt.s.mu.Lock()
	defer lt.s.mu.Unlock()
	return lt.s.timeline.Update(id, patch)
}

func (lt lockedTimeline) Sentences() []model.Sentence {
	lt.s.mu.Lock()
	defer lt.s.mu.Unlock()
	return lt.s.timeline.Sentences()
}

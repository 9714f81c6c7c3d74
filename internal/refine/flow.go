package refine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/nipun-das/ai-dubbing-tool/internal/backend"
	"github.com/nipun-das/ai-dubbing-tool/internal/model"
)

// Phase tracks a refinement invocation. Text and audio are two separately
// failable steps, so the intermediate states are explicit: the UI and tests
// can always tell partial completion apart from full success or failure.
type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseRequesting   Phase = "requesting"
	PhaseTextApplied  Phase = "text_applied"
	PhaseAudioPending Phase = "audio_pending"
	PhaseAudioApplied Phase = "audio_applied"
	PhaseAudioFailed  Phase = "audio_failed"
	PhaseFailed       Phase = "failed"
)

// PartialRefinementError reports that the text update succeeded but audio
// resynthesis did not. The text change is deliberately not rolled back; the
// audio step can be retried on its own.
type PartialRefinementError struct {
	SentenceID string
	Err        error
}

func (e *PartialRefinementError) Error() string {
	return fmt.Sprintf("sentence %s: text refined but audio resynthesis failed: %v", e.SentenceID, e.Err)
}

func (e *PartialRefinementError) Unwrap() error { return e.Err }

// Params describes one refinement request.
type Params struct {
	SentenceID         string
	Instruction        string // free-text instruction or a preset's text
	Style              string // target style tag
	ReferenceAudioPath string
	OriginalAudioPath  string // full-mix audio the backend patches the sentence into
	UseVoiceCloning    bool
}

// Result carries what the round-trip produced.
type Result struct {
	RefinedText      string
	SentenceAudioURL string
	ModifiedAudioURL string
}

// TimelineStore is the slice of timeline behavior the flow needs. The
// session hands in a lock-guarded view; tests use model.Timeline directly.
type TimelineStore interface {
	Get(id string) (model.Sentence, error)
	Update(id string, patch model.Patch) error
	Sentences() []model.Sentence
}

// Flow runs refinement round-trips against the backend and merges results
// into the sentence timeline. One attempt per phase, no retries.
type Flow struct {
	client *backend.Client
	log    *logrus.Entry

	mu    sync.Mutex
	phase Phase
}

// New creates an idle flow.
func New(client *backend.Client, logger *logrus.Logger) *Flow {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Flow{
		client: client,
		log:    logger.WithField("component", "refine"),
		phase:  PhaseIdle,
	}
}

// Phase returns the state of the most recent invocation.
func (f *Flow) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase
}

func (f *Flow) setPhase(p Phase) {
	f.mu.Lock()
	f.phase = p
	f.mu.Unlock()
}

// Run executes the two-phase refinement for one sentence. Phase one rewrites
// the translated text; on success it is applied immediately and IsRefined is
// set, regardless of what happens to audio. Phase two resynthesizes audio;
// its failure surfaces as PartialRefinementError with the text kept.
func (f *Flow) Run(ctx context.Context, tl TimelineStore, p Params) (*Result, error) {
	f.setPhase(PhaseRequesting)

	s, err := tl.Get(p.SentenceID)
	if err != nil {
		f.setPhase(PhaseFailed)
		return nil, err
	}

	refined, err := f.client.RefineDialogue(ctx, backend.RefineRequest{
		OriginalText:     s.OriginalText,
		CurrentText:      s.TranslatedText,
		RefinementPrompt: p.Instruction,
		Style:            p.Style,
		StartTime:        s.StartTime,
		Duration:         s.Duration,
		Context:          neighborContext(tl, p.SentenceID),
	})
	if err != nil {
		f.setPhase(PhaseFailed)
		return nil, err
	}

	isRefined := true
	if err := tl.Update(p.SentenceID, model.Patch{
		TranslatedText: &refined.RefinedText,
		IsRefined:      &isRefined,
	}); err != nil {
		f.setPhase(PhaseFailed)
		return nil, err
	}
	f.setPhase(PhaseTextApplied)
	f.log.WithField("sentence", p.SentenceID).Info("refined text applied")

	result := &Result{RefinedText: refined.RefinedText}

	f.setPhase(PhaseAudioPending)
	audio, err := f.client.ReprocessSentence(ctx, backend.ReprocessRequest{
		SentenceID:         p.SentenceID,
		OriginalText:       s.OriginalText,
		RefinedText:        refined.RefinedText,
		StartTime:          s.StartTime,
		Duration:           s.Duration,
		ReferenceAudioPath: p.ReferenceAudioPath,
		OriginalAudioPath:  p.OriginalAudioPath,
		UseVoiceCloning:    p.UseVoiceCloning,
	})
	if err != nil {
		f.setPhase(PhaseAudioFailed)
		f.log.WithField("sentence", p.SentenceID).WithError(err).Warn("audio resynthesis failed, text kept")
		return result, &PartialRefinementError{SentenceID: p.SentenceID, Err: err}
	}

	patch := model.Patch{}
	if audio.SentenceAudioURL != "" {
		patch.AudioURL = &audio.SentenceAudioURL
	}
	if audio.ModifiedAudioURL != "" {
		patch.ModifiedAudioURL = &audio.ModifiedAudioURL
	}
	if err := tl.Update(p.SentenceID, patch); err != nil {
		f.setPhase(PhaseAudioFailed)
		return result, &PartialRefinementError{SentenceID: p.SentenceID, Err: err}
	}

	result.SentenceAudioURL = audio.SentenceAudioURL
	result.ModifiedAudioURL = audio.ModifiedAudioURL
	f.setPhase(PhaseAudioApplied)
	return result, nil
}

// neighborContext gives the refiner the surrounding dialogue so tone stays
// consistent across sentence boundaries.
func neighborContext(tl TimelineStore, id string) string {
	sentences := tl.Sentences()
	for i, s := range sentences {
		if s.ID != id {
			continue
		}
		var parts []string
		if i > 0 {
			parts = append(parts, sentences[i-1].TranslatedText)
		}
		if i+1 < len(sentences) {
			parts = append(parts, sentences[i+1].TranslatedText)
		}
		return strings.Join(parts, " ")
	}
	return ""
}

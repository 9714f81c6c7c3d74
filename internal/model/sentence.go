package model

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Sentence is one timed segment of the dubbing timeline. IDs are assigned by
// the backend when transcription results arrive and are never reused; segments
// created locally (by Split) get a fresh UUID instead.
type Sentence struct {
	ID               string  `json:"id"`
	StartTime        float64 `json:"startTime"`
	Duration         float64 `json:"duration"`
	OriginalText     string  `json:"originalText"`
	TranslatedText   string  `json:"translatedText"`
	AudioURL         string  `json:"audioUrl,omitempty"`
	ModifiedAudioURL string  `json:"modifiedAudioUrl,omitempty"`
	IsRefined        bool    `json:"isRefined"`
}

// EndTime is derived, never stored.
func (s Sentence) EndTime() float64 {
	return s.StartTime + s.Duration
}

// Patch carries the fields of a partial sentence update. Nil fields are left
// untouched. OriginalText and ID are immutable and deliberately absent.
type Patch struct {
	StartTime        *float64
	Duration         *float64
	TranslatedText   *string
	AudioURL         *string
	ModifiedAudioURL *string
	IsRefined        *bool
}

// Timeline is the ordered sentence collection owned by an editing session.
// Slice order is the authoritative display and playback order. The timeline
// itself is not goroutine-safe; the owning session serializes access.
type Timeline struct {
	sentences []Sentence
}

// NewTimeline builds a timeline from backend-delivered sentences, preserving
// their order.
func NewTimeline(sentences []Sentence) *Timeline {
	tl := &Timeline{sentences: make([]Sentence, len(sentences))}
	copy(tl.sentences, sentences)
	return tl
}

// Sentences returns a copy of the current ordering.
func (tl *Timeline) Sentences() []Sentence {
	out := make([]Sentence, len(tl.sentences))
	copy(out, tl.sentences)
	return out
}

// Len returns the number of sentences.
func (tl *Timeline) Len() int {
	return len(tl.sentences)
}

// Get returns the sentence with the given id.
func (tl *Timeline) Get(id string) (Sentence, error) {
	i := tl.index(id)
	if i < 0 {
		return Sentence{}, &NotFoundError{ID: id}
	}
	return tl.sentences[i], nil
}

// Update merges the non-nil fields of patch into the matching sentence.
// Negative durations and start times are clamped to zero.
func (tl *Timeline) Update(id string, patch Patch) error {
	i := tl.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	s := &tl.sentences[i]
	if patch.StartTime != nil {
		s.StartTime = max0(*patch.StartTime)
	}
	if patch.Duration != nil {
		s.Duration = max0(*patch.Duration)
	}
	if patch.TranslatedText != nil {
		s.TranslatedText = *patch.TranslatedText
	}
	if patch.AudioURL != nil {
		s.AudioURL = *patch.AudioURL
	}
	if patch.ModifiedAudioURL != nil {
		s.ModifiedAudioURL = *patch.ModifiedAudioURL
	}
	if patch.IsRefined != nil {
		s.IsRefined = *patch.IsRefined
	}
	return nil
}

// Delete removes the sentence. Neighboring timings are not shifted.
func (tl *Timeline) Delete(id string) error {
	i := tl.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	tl.sentences = append(tl.sentences[:i], tl.sentences[i+1:]...)
	return nil
}

// Split divides one sentence into two halves at the midpoint of its time
// range. The translated text is divided at the word boundary nearest its
// midpoint; the original text stays with the left half since it is immutable
// per segment. The right half gets a fresh UUID and is returned.
func (tl *Timeline) Split(id string) (string, error) {
	i := tl.index(id)
	if i < 0 {
		return "", &NotFoundError{ID: id}
	}
	s := &tl.sentences[i]
	half := s.Duration / 2

	left, right := splitWords(s.TranslatedText)
	newID := uuid.NewString()
	added := Sentence{
		ID:             newID,
		StartTime:      s.StartTime + half,
		Duration:       s.Duration - half,
		OriginalText:   s.OriginalText,
		TranslatedText: right,
	}
	s.Duration = half
	s.TranslatedText = left
	// Per-sentence audio no longer matches either half.
	s.AudioURL = ""
	s.IsRefined = false

	tl.sentences = append(tl.sentences, Sentence{})
	copy(tl.sentences[i+2:], tl.sentences[i+1:])
	tl.sentences[i+1] = added
	return newID, nil
}

// Merge combines two or more sentences into the earliest one in timeline
// order. The merged segment spans from the earliest start to the latest end,
// and texts are joined with single spaces in timeline order. The surviving
// sentence keeps the first id; the others are removed.
func (tl *Timeline) Merge(ids []string) error {
	if len(ids) < 2 {
		return ErrMergeTooFew
	}
	indices := make([]int, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return ErrBadPermutation
		}
		seen[id] = true
		i := tl.index(id)
		if i < 0 {
			return &NotFoundError{ID: id}
		}
		indices = append(indices, i)
	}
	sort.Ints(indices)

	first := indices[0]
	merged := tl.sentences[first]
	end := merged.EndTime()
	var origParts, transParts []string
	for _, i := range indices {
		s := tl.sentences[i]
		if s.StartTime < merged.StartTime {
			merged.StartTime = s.StartTime
		}
		if s.EndTime() > end {
			end = s.EndTime()
		}
		origParts = append(origParts, strings.TrimSpace(s.OriginalText))
		transParts = append(transParts, strings.TrimSpace(s.TranslatedText))
	}
	merged.Duration = end - merged.StartTime
	merged.OriginalText = joinNonEmpty(origParts)
	merged.TranslatedText = joinNonEmpty(transParts)
	merged.AudioURL = ""
	merged.ModifiedAudioURL = ""
	merged.IsRefined = false

	// Remove the merged-away sentences back to front so indices stay valid;
	// they are all greater than first, which therefore keeps its position.
	for k := len(indices) - 1; k >= 1; k-- {
		i := indices[k]
		tl.sentences = append(tl.sentences[:i], tl.sentences[i+1:]...)
	}
	tl.sentences[first] = merged
	return nil
}

// Reorder replaces the sequence order. The new order must be an exact
// permutation of the current ids; unknown, duplicate, or missing ids are a
// contract violation and leave the timeline unchanged.
func (tl *Timeline) Reorder(ids []string) error {
	if len(ids) != len(tl.sentences) {
		return ErrBadPermutation
	}
	seen := make(map[string]bool, len(ids))
	reordered := make([]Sentence, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			return ErrBadPermutation
		}
		seen[id] = true
		i := tl.index(id)
		if i < 0 {
			return ErrBadPermutation
		}
		reordered = append(reordered, tl.sentences[i])
	}
	tl.sentences = reordered
	return nil
}

// SentenceAt returns the sentence whose time range contains t, treating each
// range as half-open [start, end).
func (tl *Timeline) SentenceAt(t float64) (Sentence, bool) {
	for _, s := range tl.sentences {
		if t >= s.StartTime && t < s.EndTime() {
			return s, true
		}
	}
	return Sentence{}, false
}

// TotalDuration returns the latest end time across all sentences.
func (tl *Timeline) TotalDuration() float64 {
	var end float64
	for _, s := range tl.sentences {
		if e := s.EndTime(); e > end {
			end = e
		}
	}
	return end
}

// IDs returns the current id ordering.
func (tl *Timeline) IDs() []string {
	ids := make([]string, len(tl.sentences))
	for i, s := range tl.sentences {
		ids[i] = s.ID
	}
	return ids
}

// Validate checks structural invariants. Durations must be non-negative
// always; overlap between neighbors is only an error when strict is set,
// since the upstream pipeline does not guarantee disjoint segments.
func (tl *Timeline) Validate(strict bool) error {
	for _, s := range tl.sentences {
		if s.Duration < 0 {
			return &ValidationError{ID: s.ID, Reason: "negative duration"}
		}
		if s.StartTime < 0 {
			return &ValidationError{ID: s.ID, Reason: "negative start time"}
		}
	}
	if !strict {
		return nil
	}
	for i := 1; i < len(tl.sentences); i++ {
		prev, cur := tl.sentences[i-1], tl.sentences[i]
		if cur.StartTime < prev.EndTime() {
			return &ValidationError{ID: cur.ID, Reason: "overlaps previous sentence"}
		}
	}
	return nil
}

func (tl *Timeline) index(id string) int {
	for i, s := range tl.sentences {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// splitWords divides text at the word boundary nearest its midpoint.
func splitWords(text string) (left, right string) {
	words := strings.Fields(text)
	if len(words) < 2 {
		return text, ""
	}
	mid := len(words) / 2
	return strings.Join(words[:mid], " "), strings.Join(words[mid:], " ")
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

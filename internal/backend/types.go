package backend

// Settings is the processing settings JSON sent alongside an uploaded file.
// The mapstructure tags let the config layer unmarshal the same shape.
type Settings struct {
	InputLanguage     string  `json:"inputLanguage" mapstructure:"input_language"`
	WhisperModel      string  `json:"whisperModel" mapstructure:"whisper_model"`
	Device            string  `json:"device" mapstructure:"device"`
	ReferenceDuration float64 `json:"referenceDuration" mapstructure:"reference_duration"`
	VoiceQualityMode  string  `json:"voiceQualityMode" mapstructure:"voice_quality_mode"`
	UseSegments       bool    `json:"useSegments" mapstructure:"use_segments"`
}

// DefaultSettings mirrors the backend's own defaults.
func DefaultSettings() Settings {
	return Settings{
		InputLanguage:     "hi",
		WhisperModel:      "base",
		Device:            "auto",
		ReferenceDuration: 15,
		VoiceQualityMode:  "high_quality",
		UseSegments:       true,
	}
}

// SentenceData is one timed sentence as delivered by the dubbing pipeline.
// EndTime is redundant with StartTime+Duration but the backend sends it.
type SentenceData struct {
	ID             string  `json:"id"`
	StartTime      float64 `json:"startTime"`
	EndTime        float64 `json:"endTime"`
	Duration       float64 `json:"duration"`
	OriginalText   string  `json:"originalText"`
	TranslatedText string  `json:"translatedText"`
	Confidence     float64 `json:"confidence,omitempty"`
	NoSpeechProb   float64 `json:"noSpeechProb,omitempty"`
}

// DubResult is the response of the full pipeline run.
type DubResult struct {
	OriginalText       string         `json:"original_text"`
	TranslatedText     string         `json:"translated_text"`
	OutputAudioPath    string         `json:"output_audio_path"`
	ReferenceAudioPath string         `json:"reference_audio_path"`
	Sentences          []SentenceData `json:"sentences"`
	Status             string         `json:"status"`
}

// ExportSentence is the per-sentence payload of an export request.
type ExportSentence struct {
	ID             string  `json:"id"`
	StartTime      float64 `json:"startTime"`
	Duration       float64 `json:"duration"`
	TranslatedText string  `json:"translatedText"`
}

// ExportResult reports a finished final-mix render.
type ExportResult struct {
	Success        bool   `json:"success"`
	OutputFilename string `json:"output_filename"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RefineRequest carries one sentence's text plus timing context so the
// remote refiner can respect the timing constraint.
type RefineRequest struct {
	OriginalText     string  `json:"originalText"`
	CurrentText      string  `json:"currentText"`
	RefinementPrompt string  `json:"refinementPrompt"`
	Style            string  `json:"style"`
	StartTime        float64 `json:"startTime"`
	Duration         float64 `json:"duration"`
	Context          string  `json:"context,omitempty"`
}

// RefineResult is the refined text for one sentence.
type RefineResult struct {
	RefinedText string `json:"refinedText"`
}

// ReprocessRequest asks the backend to resynthesize audio for a refined
// sentence.
type ReprocessRequest struct {
	SentenceID         string  `json:"sentenceId"`
	OriginalText       string  `json:"originalText"`
	RefinedText        string  `json:"refinedText"`
	StartTime          float64 `json:"startTime"`
	Duration           float64 `json:"duration"`
	ReferenceAudioPath string  `json:"referenceAudioPath"`
	OriginalAudioPath  string  `json:"originalAudioPath"`
	UseVoiceCloning    bool    `json:"useVoiceCloning"`
}

// reprocessWire matches the raw reprocess response. The backend emits either
// the sentenceAudio* names or the legacy audio* names depending on whether
// it could patch the full mix, so both are accepted.
type reprocessWire struct {
	Success           bool   `json:"success"`
	SentenceAudioPath string `json:"sentenceAudioPath"`
	SentenceAudioURL  string `json:"sentenceAudioUrl"`
	AudioPath         string `json:"audioPath"`
	AudioURL          string `json:"audioUrl"`
	ModifiedAudioPath string `json:"modifiedAudioPath"`
	ModifiedAudioURL  string `json:"modifiedAudioUrl"`
}

// ReprocessResult is the normalized resynthesis response: a per-sentence
// clip plus, when available, a full-mix clip reflecting the change.
type ReprocessResult struct {
	SentenceAudioPath string
	SentenceAudioURL  string
	ModifiedAudioPath string
	ModifiedAudioURL  string
}

func (w reprocessWire) normalize() ReprocessResult {
	out := ReprocessResult{
		SentenceAudioPath: w.SentenceAudioPath,
		SentenceAudioURL:  w.SentenceAudioURL,
		ModifiedAudioPath: w.ModifiedAudioPath,
		ModifiedAudioURL:  w.ModifiedAudioURL,
	}
	if out.SentenceAudioPath == "" {
		out.SentenceAudioPath = w.AudioPath
	}
	if out.SentenceAudioURL == "" {
		out.SentenceAudioURL = w.AudioURL
	}
	return out
}

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nipun-das/ai-dubbing-tool/internal/audio"
	"github.com/nipun-das/ai-dubbing-tool/internal/layout"
	"github.com/nipun-das/ai-dubbing-tool/internal/model"
	"github.com/nipun-das/ai-dubbing-tool/internal/refine"
)

// Action names a session command from the UI.
type Action string

const (
	ActionPlay         Action = "play"
	ActionPause        Action = "pause"
	ActionSeek         Action = "seek"
	ActionPlaySentence Action = "play_sentence"
	ActionLoadComplete Action = "load_complete"
	ActionLoadExported Action = "load_exported"
	ActionSetVolume    Action = "set_volume"
	ActionSetMuted     Action = "set_muted"
	ActionUpdateText   Action = "update_text"
	ActionSetTiming    Action = "set_timing"
	ActionSplit        Action = "split"
	ActionMerge        Action = "merge"
	ActionDelete       Action = "delete"
	ActionReorder      Action = "reorder"
	ActionRefine       Action = "refine"
	ActionExport       Action = "export"
	ActionDownload     Action = "download_export"
	ActionTranscript   Action = "write_transcript"
)

// Command is one UI request. Only the fields the action needs are set.
type Command struct {
	Action          Action   `json:"action"`
	SentenceID      string   `json:"sentenceId,omitempty"`
	IDs             []string `json:"ids,omitempty"`
	Text            string   `json:"text,omitempty"`
	Position        float64  `json:"position,omitempty"`
	StartTime       float64  `json:"startTime,omitempty"`
	Duration        float64  `json:"duration,omitempty"`
	Volume          float64  `json:"volume,omitempty"`
	Muted           bool     `json:"muted,omitempty"`
	Instruction     string   `json:"instruction,omitempty"`
	Style           string   `json:"style,omitempty"`
	Preset          string   `json:"preset,omitempty"`
	UseVoiceCloning bool     `json:"useVoiceCloning,omitempty"`
	Path            string   `json:"path,omitempty"`
	Formats         []string `json:"formats,omitempty"`
}

// PlaybackStatus is the engine portion of a snapshot. Times are seconds.
type PlaybackStatus struct {
	Playing  bool          `json:"playing"`
	Position float64       `json:"position"`
	Duration float64       `json:"duration"`
	Variant  audio.Variant `json:"variant"`
	Volume   float64       `json:"volume"`
	Muted    bool          `json:"muted"`
}

// StatusSnapshot is the complete editor state at a point in time, as pushed
// to the UI over the bridge.
type StatusSnapshot struct {
	SessionID    string           `json:"sessionId"`
	Timestamp    time.Time        `json:"timestamp"`
	SourceFile   string           `json:"sourceFile,omitempty"`
	Sentences    []model.Sentence `json:"sentences"`
	Boxes        []layout.Box     `json:"boxes,omitempty"`
	Playback     PlaybackStatus   `json:"playback"`
	RefinePhase  refine.Phase     `json:"refinePhase"`
	LastExported string           `json:"lastExportedFilename,omitempty"`
	LastAction   string           `json:"lastAction,omitempty"`
	LastError    string           `json:"lastError,omitempty"`
}

// Snapshot captures the current state. Safe to call concurrently with
// command dispatch.
func (s *Session) Snapshot() StatusSnapshot {
	s.mu.Lock()
	sentences := s.timeline.Sentences()
	total := s.timeline.TotalDuration()
	snap := StatusSnapshot{
		SessionID:    s.id,
		Timestamp:    time.Now().UTC(),
		SourceFile:   s.sourceFile,
		Sentences:    sentences,
		RefinePhase:  s.flow.Phase(),
		LastExported: s.lastExported,
		LastAction:   s.lastAction,
		LastError:    s.lastError,
	}
	s.mu.Unlock()

	snap.Boxes = layout.NewGeometry().Boxes(sentences, total)

	snap.Playback = PlaybackStatus{
		Playing:  s.engine.Playing(),
		Position: s.engine.Position().Seconds(),
		Duration: s.engine.Duration().Seconds(),
		Variant:  s.engine.Variant(),
		Volume:   s.engine.Volume(),
		Muted:    s.engine.Muted(),
	}
	return snap
}

// Dispatch executes one UI command and records it, or its failure, in
// session state. Unknown actions are an error.
func (s *Session) Dispatch(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Action {
	case ActionPlay:
		err = s.Play()
	case ActionPause:
		s.Pause()
	case ActionSeek:
		err = s.SeekSeconds(cmd.Position)
	case ActionPlaySentence:
		err = s.PlaySentence(ctx, cmd.SentenceID)
	case ActionLoadComplete:
		err = s.LoadComplete(ctx)
	case ActionLoadExported:
		err = s.LoadExported(ctx)
	case ActionSetVolume:
		s.SetVolume(cmd.Volume)
	case ActionSetMuted:
		s.SetMuted(cmd.Muted)
	case ActionUpdateText:
		err = s.UpdateText(cmd.SentenceID, cmd.Text)
	case ActionSetTiming:
		err = s.SetTiming(cmd.SentenceID, cmd.StartTime, cmd.Duration)
	case ActionSplit:
		_, err = s.Split(cmd.SentenceID)
	case ActionMerge:
		err = s.Merge(cmd.IDs)
	case ActionDelete:
		err = s.Delete(cmd.SentenceID)
	case ActionReorder:
		err = s.Reorder(cmd.IDs)
	case ActionRefine:
		_, err = s.Refine(ctx, RefineParams{
			SentenceID:      cmd.SentenceID,
			Instruction:     cmd.Instruction,
			Style:           cmd.Style,
			Preset:          cmd.Preset,
			UseVoiceCloning: cmd.UseVoiceCloning,
		})
	case ActionExport:
		_, err = s.Export(ctx)
	case ActionDownload:
		_, err = s.DownloadExport(ctx)
	case ActionTranscript:
		err = s.WriteTranscript(cmd.Path, cmd.Formats)
	default:
		err = fmt.Errorf("unknown action %q", cmd.Action)
	}

	s.record(cmd.Action, err)
	if err != nil {
		s.log.WithField("action", cmd.Action).WithError(err).Warn("command failed")
	}
	return err
}

func (s *Session) record(action Action, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAction = string(action)
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

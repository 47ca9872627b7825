// Package engine abstracts the two transcription backends behind a single
// contract so the rest of the pipeline stays engine agnostic.
package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scribehub/transcriber/internal/store/model"
)

// Name is the closed set of supported backends.
type Name string

const (
	// EngineSpeech is the low-level streaming recognizer. It requires audio
	// normalized to mono 16 kHz PCM and reports word-level timing.
	EngineSpeech Name = "speech"
	// EngineWhisperX is the batch diarization service.
	EngineWhisperX Name = "whisperx"
)

// Parse validates an engine tag before any I/O happens.
func Parse(s string) (Name, error) {
	switch Name(s) {
	case EngineSpeech:
		return EngineSpeech, nil
	case EngineWhisperX:
		return EngineWhisperX, nil
	default:
		return "", NewErrUnsupportedEngine(s)
	}
}

// Request carries everything an adapter needs for one transcription call.
// Params is engine specific and validated only inside the adapter.
type Request struct {
	AudioPath    string
	TranscriptID uuid.UUID
	Filename     string
	Language     string
	ContextID    *uuid.UUID
	Params       map[string]any
}

// Result is the engine-agnostic transcript shape both adapters produce.
type Result struct {
	Segments     []model.Segment
	Duration     float64
	Language     string
	SpeakerRoles map[string]string
}

// Engine is implemented once per backend.
type Engine interface {
	Name() Name
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// Transcriber dispatches to the adapter registered for the requested engine.
type Transcriber struct {
	engines map[Name]Engine
}

func NewTranscriber(engines ...Engine) *Transcriber {
	m := make(map[Name]Engine, len(engines))
	for _, e := range engines {
		m[e.Name()] = e
	}
	return &Transcriber{engines: m}
}

func (t *Transcriber) Transcribe(ctx context.Context, name Name, req Request) (*Result, error) {
	e, ok := t.engines[name]
	if !ok {
		return nil, NewErrUnsupportedEngine(string(name))
	}

	result, err := e.Transcribe(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s transcription failed: %w", name, err)
	}

	if len(result.Segments) > 0 && result.Duration == 0 {
		result.Duration = result.Segments[len(result.Segments)-1].End
	}

	return result, nil
}

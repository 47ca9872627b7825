package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribehub/transcriber/internal/store/model"
)

func TestParse(t *testing.T) {
	name, err := Parse("speech")
	require.NoError(t, err)
	assert.Equal(t, EngineSpeech, name)

	name, err = Parse("whisperx")
	require.NoError(t, err)
	assert.Equal(t, EngineWhisperX, name)

	_, err = Parse("riva")
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

type stubEngine struct {
	name   Name
	result *Result
	err    error
}

func (s *stubEngine) Name() Name { return s.name }
func (s *stubEngine) Transcribe(context.Context, Request) (*Result, error) {
	return s.result, s.err
}

func TestTranscriberDispatch(t *testing.T) {
	speech := &stubEngine{name: EngineSpeech, result: &Result{
		Segments: []model.Segment{{Start: 0, End: 4.2, Text: "hi"}},
	}}
	tr := NewTranscriber(speech)

	result, err := tr.Transcribe(context.Background(), EngineSpeech, Request{})
	require.NoError(t, err)

	// duration backfilled from the last segment
	assert.Equal(t, 4.2, result.Duration)
}

func TestTranscriberUnknownEngine(t *testing.T) {
	tr := NewTranscriber()

	_, err := tr.Transcribe(context.Background(), EngineWhisperX, Request{})
	require.Error(t, err)

	var unsupported *ErrUnsupportedEngine
	assert.True(t, errors.As(err, &unsupported))
}

func TestTranscriberWrapsEngineError(t *testing.T) {
	failing := &stubEngine{name: EngineSpeech, err: NewErrBackendUnavailable(EngineSpeech, errors.New("conn refused"))}
	tr := NewTranscriber(failing)

	_, err := tr.Transcribe(context.Background(), EngineSpeech, Request{})
	require.Error(t, err)
	assert.False(t, IsFatal(err))

	var unavailable *ErrBackendUnavailable
	assert.True(t, errors.As(err, &unavailable))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewErrMalformedResponse(EngineWhisperX, errors.New("bad json"))))
	assert.False(t, IsFatal(NewErrBackendUnavailable(EngineWhisperX, errors.New("timeout"))))
	assert.False(t, IsFatal(errors.New("other")))
}

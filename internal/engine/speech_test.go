package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stageAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake wav content"), 0o600))
	return path
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestSpeechEngineGroupsWordsBySpeaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/recognize", r.URL.Path)

		var req speechRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 16000, req.Config.SampleRateHertz)
		assert.True(t, req.Config.EnableDiarization)
		assert.NotEmpty(t, req.Audio)

		resp := speechResponse{Results: []speechResult{{
			Alternatives: []speechAlternative{{
				Words: []speechWord{
					{Word: "hello", StartTime: 0.0, EndTime: 0.5, Confidence: floatPtr(0.9), SpeakerTag: intPtr(1)},
					{Word: "there", StartTime: 0.5, EndTime: 1.0, Confidence: floatPtr(0.7)}, // inherits speaker 1
					{Word: "hi", StartTime: 1.5, EndTime: 2.0, Confidence: floatPtr(0.8), SpeakerTag: intPtr(2)},
				},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewSpeechEngine(server.URL, 5*time.Second, nil)
	result, err := e.Transcribe(context.Background(), Request{
		AudioPath: stageAudioFile(t),
		Language:  "en-US",
	})
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)

	first := result.Segments[0]
	assert.Equal(t, "hello there", first.Text)
	assert.Equal(t, 1, first.SpeakerTag)
	assert.InDelta(t, 0.8, first.Confidence, 1e-9)
	assert.Equal(t, 0.0, first.Start)
	assert.Equal(t, 1.0, first.End)

	second := result.Segments[1]
	assert.Equal(t, "hi", second.Text)
	assert.Equal(t, 2, second.SpeakerTag)

	assert.Equal(t, 2.0, result.Duration)
}

func TestSpeechEngineDefaultsToSpeakerOne(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := speechResponse{Results: []speechResult{{
			Alternatives: []speechAlternative{{
				Words: []speechWord{
					{Word: "untagged", StartTime: 0, EndTime: 1},
				},
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewSpeechEngine(server.URL, 5*time.Second, nil)
	result, err := e.Transcribe(context.Background(), Request{AudioPath: stageAudioFile(t), Language: "en-US"})
	require.NoError(t, err)
	require.Len(t, result.Segments, 1)
	assert.Equal(t, 1, result.Segments[0].SpeakerTag)
}

func TestSpeechEngineFallsBackToTranscriptText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := speechResponse{Results: []speechResult{{
			Alternatives: []speechAlternative{{
				Transcript: "speaker_1: good morning\nspeaker_2: hello doctor",
			}},
		}}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	e := NewSpeechEngine(server.URL, 5*time.Second, nil)
	result, err := e.Transcribe(context.Background(), Request{AudioPath: stageAudioFile(t), Language: "en-US"})
	require.NoError(t, err)
	require.Len(t, result.Segments, 2)

	assert.Equal(t, "good morning", result.Segments[0].Text)
	assert.Equal(t, 1, result.Segments[0].SpeakerTag)
	assert.Equal(t, "hello doctor", result.Segments[1].Text)
	assert.Equal(t, 2, result.Segments[1].SpeakerTag)

	// no word timing at all, so timing is estimated
	assert.True(t, result.Segments[0].Estimated)
}

func TestSpeechEngineMalformedResponseIsFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	e := NewSpeechEngine(server.URL, 5*time.Second, nil)
	_, err := e.Transcribe(context.Background(), Request{AudioPath: stageAudioFile(t), Language: "en-US"})
	require.Error(t, err)
	assert.True(t, IsFatal(err))
}

func TestSpeechEngineServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	e := NewSpeechEngine(server.URL, 5*time.Second, nil)
	_, err := e.Transcribe(context.Background(), Request{AudioPath: stageAudioFile(t), Language: "en-US"})
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

func TestSpeechEngineUnreachableBackendIsTransient(t *testing.T) {
	e := NewSpeechEngine("http://127.0.0.1:1", 500*time.Millisecond, nil)
	_, err := e.Transcribe(context.Background(), Request{AudioPath: stageAudioFile(t), Language: "en-US"})
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

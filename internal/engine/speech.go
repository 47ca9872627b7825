package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scribehub/transcriber/internal/store"
	"github.com/scribehub/transcriber/internal/store/model"
)

// SpeechEngine talks to the low-level speech recognizer. The service accepts
// mono 16 kHz PCM WAV (produced upstream by the Normalizer) and reports
// word-level timing with per-word speaker tags.
type SpeechEngine struct {
	baseURL  string
	client   *http.Client
	contexts store.TranscriptionContext
	logger   *zap.SugaredLogger
}

func NewSpeechEngine(baseURL string, timeout time.Duration, contexts store.TranscriptionContext) *SpeechEngine {
	return &SpeechEngine{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		contexts: contexts,
		logger:   zap.S().Named("speech_engine"),
	}
}

func (e *SpeechEngine) Name() Name {
	return EngineSpeech
}

type speechConfig struct {
	LanguageCode          string    `json:"language_code"`
	SampleRateHertz       int       `json:"sample_rate_hertz"`
	AudioChannelCount     int       `json:"audio_channel_count"`
	EnableWordTimeOffsets bool      `json:"enable_word_time_offsets"`
	EnableDiarization     bool      `json:"enable_diarization"`
	BoostedTerms          []string  `json:"boosted_terms,omitempty"`
	BoostedScores         []float64 `json:"boosted_scores,omitempty"`
}

type speechRequest struct {
	Config speechConfig `json:"config"`
	Audio  string       `json:"audio"`
}

type speechWord struct {
	Word       string   `json:"word"`
	StartTime  float64  `json:"start_time"`
	EndTime    float64  `json:"end_time"`
	Confidence *float64 `json:"confidence,omitempty"`
	SpeakerTag *int     `json:"speaker_tag,omitempty"`
}

type speechAlternative struct {
	Transcript string       `json:"transcript"`
	Words      []speechWord `json:"words"`
}

type speechResult struct {
	Alternatives []speechAlternative `json:"alternatives"`
}

type speechResponse struct {
	Results []speechResult `json:"results"`
}

func (e *SpeechEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, NewErrMalformedResponse(EngineSpeech, fmt.Errorf("empty audio buffer"))
	}

	cfg := speechConfig{
		LanguageCode:          req.Language,
		SampleRateHertz:       16000,
		AudioChannelCount:     1,
		EnableWordTimeOffsets: true,
		EnableDiarization:     true,
	}

	// word boosting is best effort: a missing or broken context never fails
	// the transcription, it only disables boosting
	if req.ContextID != nil {
		if trCtx, err := e.contexts.Get(ctx, *req.ContextID); err != nil {
			e.logger.Warnw("failed to load boosting context", "context_id", req.ContextID, "error", err)
		} else if trCtx.WordBoosting != nil {
			cfg.BoostedTerms, cfg.BoostedScores = FlattenBoostConfig(trCtx.WordBoosting.Data)
		}
	}

	body, err := json.Marshal(speechRequest{
		Config: cfg,
		Audio:  base64.StdEncoding.EncodeToString(audio),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/recognize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, NewErrBackendUnavailable(EngineSpeech, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewErrBackendUnavailable(EngineSpeech, fmt.Errorf("http %d", resp.StatusCode))
	}

	var decoded speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, NewErrMalformedResponse(EngineSpeech, err)
	}

	segments := segmentsFromWords(decoded)
	if len(segments) == 0 {
		segments = segmentsFromTranscriptText(decoded)
	}
	segments = SanitizeSegments(segments)

	result := &Result{
		Segments: segments,
		Language: req.Language,
	}
	if len(segments) > 0 {
		result.Duration = segments[len(segments)-1].End
	}

	return result, nil
}

// segmentsFromWords groups word timings into segments by consecutive speaker
// tag. Words without a tag inherit the last known speaker, defaulting to 1.
func segmentsFromWords(resp speechResponse) []model.Segment {
	type wordWithSpeaker struct {
		word    speechWord
		speaker int
	}

	var words []wordWithSpeaker
	lastKnown := 1
	for _, res := range resp.Results {
		if len(res.Alternatives) == 0 {
			continue
		}
		for _, w := range res.Alternatives[0].Words {
			speaker := lastKnown
			if w.SpeakerTag != nil {
				speaker = *w.SpeakerTag
				lastKnown = speaker
			}
			words = append(words, wordWithSpeaker{word: w, speaker: speaker})
		}
	}

	if len(words) == 0 {
		return nil
	}

	var segments []model.Segment
	groupStart := 0
	for i := 1; i <= len(words); i++ {
		if i == len(words) || words[i].speaker != words[groupStart].speaker {
			group := words[groupStart:i]

			var texts []string
			var confidences []float64
			for _, w := range group {
				texts = append(texts, w.word.Word)
				if w.word.Confidence != nil {
					confidences = append(confidences, *w.word.Confidence)
				}
			}

			confidence := 1.0
			if len(confidences) > 0 {
				sum := 0.0
				for _, c := range confidences {
					sum += c
				}
				confidence = sum / float64(len(confidences))
			}

			start := NormalizeTimestamp(group[0].word.StartTime)
			end := NormalizeTimestamp(group[len(group)-1].word.EndTime)
			if end < start {
				end = start
			}

			segments = append(segments, model.Segment{
				Start:      start,
				End:        end,
				Text:       strings.TrimSpace(strings.Join(texts, " ")),
				SpeakerTag: group[0].speaker,
				Confidence: confidence,
			})
			groupStart = i
		}
	}

	return segments
}

var speakerLabelRe = regexp.MustCompile(`(?im)(?:^|\n)\s*speaker[_\s-]?(\d+)\s*:\s*`)

// segmentsFromTranscriptText recovers segments from a transcript that embeds
// speaker labels in the text, e.g. "speaker_1: hello". Used only when the
// response carried no word timing at all.
func segmentsFromTranscriptText(resp speechResponse) []model.Segment {
	var parts []string
	for _, res := range resp.Results {
		if len(res.Alternatives) > 0 {
			parts = append(parts, res.Alternatives[0].Transcript)
		}
	}
	fullText := strings.TrimSpace(strings.Join(parts, " "))
	if fullText == "" {
		return nil
	}

	matches := speakerLabelRe.FindAllStringSubmatchIndex(fullText, -1)
	if len(matches) == 0 {
		return []model.Segment{{Text: fullText, SpeakerTag: 0, Confidence: 1.0}}
	}

	var segments []model.Segment
	if preface := strings.TrimSpace(fullText[:matches[0][0]]); preface != "" {
		segments = append(segments, model.Segment{Text: preface, SpeakerTag: 0, Confidence: 1.0})
	}

	for i, m := range matches {
		end := len(fullText)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}

		body := strings.TrimSpace(fullText[m[1]:end])
		if body == "" {
			continue
		}

		speaker, _ := strconv.Atoi(fullText[m[2]:m[3]])
		segments = append(segments, model.Segment{Text: body, SpeakerTag: speaker, Confidence: 1.0})
	}

	return segments
}

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scribehub/transcriber/internal/store/model"
)

// WhisperXEngine talks to the whisperx transcription service. Audio is
// uploaded as-is via multipart form, the service handles decoding and
// diarization internally and reports segment-level speaker labels.
type WhisperXEngine struct {
	baseURL       string
	client        *http.Client
	allowedModels map[string]bool
	logger        *zap.SugaredLogger
}

func NewWhisperXEngine(baseURL string, timeout time.Duration, allowedModels []string) *WhisperXEngine {
	allowed := make(map[string]bool, len(allowedModels))
	for _, m := range allowedModels {
		allowed[strings.TrimSpace(m)] = true
	}
	return &WhisperXEngine{
		baseURL:       strings.TrimRight(baseURL, "/"),
		client:        &http.Client{Timeout: timeout},
		allowedModels: allowed,
		logger:        zap.S().Named("whisperx_engine"),
	}
}

func (e *WhisperXEngine) Name() Name {
	return EngineWhisperX
}

type whisperxSegment struct {
	Start   float64  `json:"start"`
	End     float64  `json:"end"`
	Text    string   `json:"text"`
	Speaker string   `json:"speaker,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

type whisperxResponse struct {
	Segments []whisperxSegment `json:"segments"`
	Language string            `json:"language,omitempty"`
	Duration float64           `json:"duration,omitempty"`
}

func (e *WhisperXEngine) Transcribe(ctx context.Context, req Request) (*Result, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("opening audio: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filepath.Base(req.AudioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("buffering audio: %w", err)
	}

	if err := e.writeParams(mw, req); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/transcribe", &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, NewErrBackendUnavailable(EngineWhisperX, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewErrBackendUnavailable(EngineWhisperX, fmt.Errorf("http %d", resp.StatusCode))
	}

	var decoded whisperxResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, NewErrMalformedResponse(EngineWhisperX, err)
	}

	segments := make([]model.Segment, 0, len(decoded.Segments))
	for _, s := range decoded.Segments {
		confidence := 1.0
		if s.Score != nil {
			confidence = *s.Score
		}
		segments = append(segments, model.Segment{
			Start:      NormalizeTimestamp(s.Start),
			End:        NormalizeTimestamp(s.End),
			Text:       strings.TrimSpace(s.Text),
			SpeakerTag: parseSpeakerLabel(s.Speaker),
			Confidence: confidence,
		})
	}
	segments = SanitizeSegments(segments)

	language := decoded.Language
	if language == "" {
		language = req.Language
	}

	result := &Result{
		Segments: segments,
		Language: language,
		Duration: decoded.Duration,
	}
	if result.Duration == 0 && len(segments) > 0 {
		result.Duration = segments[len(segments)-1].End
	}

	return result, nil
}

func (e *WhisperXEngine) writeParams(mw *multipart.Writer, req Request) error {
	fields := map[string]string{
		"language": shortLanguageCode(req.Language),
		"diarize":  "true",
	}

	if name, ok := req.Params["model"].(string); ok && name != "" {
		if len(e.allowedModels) > 0 && !e.allowedModels[name] {
			e.logger.Warnw("requested model not in allowlist, ignoring", "model", name)
		} else {
			fields["model"] = name
		}
	}
	if v, ok := intParam(req.Params, "min_speakers"); ok {
		fields["min_speakers"] = strconv.Itoa(v)
	}
	if v, ok := intParam(req.Params, "max_speakers"); ok {
		fields["max_speakers"] = strconv.Itoa(v)
	}
	if v, ok := req.Params["diarize"].(bool); ok && !v {
		fields["diarize"] = "false"
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}
	return nil
}

// intParam reads numeric params regardless of whether they arrived as json
// float64 or as a native int.
func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// shortLanguageCode trims BCP-47 tags down to the bare language, "en-US"
// becomes "en".
func shortLanguageCode(code string) string {
	if idx := strings.IndexAny(code, "-_"); idx > 0 {
		return code[:idx]
	}
	return code
}

// parseSpeakerLabel converts diarization labels of the form "SPEAKER_00" to
// numeric tags. Unlabelled segments map to speaker 0.
func parseSpeakerLabel(label string) int {
	if label == "" {
		return 0
	}
	idx := strings.LastIndexAny(label, "_-")
	if idx < 0 || idx == len(label)-1 {
		return 0
	}
	n, err := strconv.Atoi(label[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

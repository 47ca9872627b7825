package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Normalizer converts arbitrary audio input into the mono 16 kHz PCM WAV the
// speech recognizer requires. Conversion happens in the pipeline, never
// inside an engine call.
type Normalizer struct {
	ffmpegPath string
}

func NewNormalizer(ffmpegPath string) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{ffmpegPath: ffmpegPath}
}

// ToMono16kWAV writes the normalized audio next to the input file and returns
// its path. The caller owns cleanup of the returned file.
func (n *Normalizer) ToMono16kWAV(ctx context.Context, inputPath string) (string, error) {
	if strings.EqualFold(filepath.Ext(inputPath), ".wav") {
		return inputPath, nil
	}

	outPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_norm.wav"

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}

	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", errors.Wrapf(err, "audio conversion failed: %s", strings.TrimSpace(stderr.String()))
	}

	if _, err := os.Stat(outPath); err != nil {
		return "", errors.Wrap(err, "audio conversion produced no output")
	}

	return outPath, nil
}

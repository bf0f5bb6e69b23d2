// Package whisper drives the stable-ts command line tool to transcribe songs
// or force-align known lyrics against the audio.
package whisper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

const (
	DefaultCommand = "stable-ts"
	DefaultModel   = "medium"
)

// DefaultExtraArgs mirrors the tuned setup: faster-whisper backend, voice
// activity detection and the demucs vocal separator.
var DefaultExtraArgs = []string{"--faster_whisper", "--vad", "True", "--denoiser", "demucs"}

var logger = logging.Component("stable-ts")

// Config stable-ts 调用参数
type Config struct {
	Command   string
	Model     string
	Language  string
	ExtraArgs []string
	// WorkDir holds per-run scratch directories. Empty means os.TempDir().
	WorkDir string
}

// Service runs stable-ts.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a stable-ts service with defaults filled in.
func NewService(cfg Config) *Service {
	if cfg.Command == "" {
		cfg.Command = DefaultCommand
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.ExtraArgs == nil {
		cfg.ExtraArgs = DefaultExtraArgs
	}
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.Model
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// AlignText force-aligns text against the audio and returns one timed line
// per aligned segment.
func (s *Service) AlignText(ctx context.Context, asset lyricdoc.AudioAsset, text string) ([]lyricdoc.Line, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("align: empty text")
	}
	return s.execute(ctx, asset, text)
}

// TranscribeAndAlign transcribes the audio with timestamps.
func (s *Service) TranscribeAndAlign(ctx context.Context, asset lyricdoc.AudioAsset) ([]lyricdoc.Line, error) {
	return s.execute(ctx, asset, "")
}

func (s *Service) execute(ctx context.Context, asset lyricdoc.AudioAsset, text string) ([]lyricdoc.Line, error) {
	if asset.Path == "" {
		return nil, errors.New("stable-ts: audio path required")
	}

	workDir, err := os.MkdirTemp(s.cfg.WorkDir, "stable-ts-*")
	if err != nil {
		return nil, fmt.Errorf("stable-ts: create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputPath := filepath.Join(workDir, "result.json")
	alignPath := ""
	if text != "" {
		alignPath = filepath.Join(workDir, "lyrics.txt")
		if err := os.WriteFile(alignPath, []byte(text), 0o644); err != nil {
			return nil, fmt.Errorf("stable-ts: write lyrics: %w", err)
		}
	}

	args := s.buildArgs(asset.Path, outputPath, alignPath)
	logger.Debug().
		Str("track_id", asset.TrackID).
		Bool("align", alignPath != "").
		Strs("args", args).
		Msg("Running stable-ts")

	if err := s.run(ctx, s.cfg.Command, args...); err != nil {
		return nil, fmt.Errorf("stable-ts: %w", err)
	}

	lines, err := loadSegments(outputPath)
	if err != nil {
		return nil, fmt.Errorf("stable-ts: %w", err)
	}
	return lines, nil
}

func (s *Service) buildArgs(audioPath, outputPath, alignPath string) []string {
	args := []string{
		audioPath,
		"--model", s.cfg.Model,
		"--output", outputPath,
		"--overwrite",
	}
	if s.cfg.Language != "" {
		args = append(args, "--language", s.cfg.Language)
	}
	if alignPath != "" {
		args = append(args, "--align", alignPath)
	}
	return append(args, s.cfg.ExtraArgs...)
}

type segmentsPayload struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func loadSegments(path string) ([]lyricdoc.Line, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result: %w", err)
	}
	var payload segmentsPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse result: %w", err)
	}

	lines := make([]lyricdoc.Line, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		lines = append(lines, lyricdoc.Line{
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}
	return lines, nil
}

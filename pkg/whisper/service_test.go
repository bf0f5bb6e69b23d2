package whisper

import (
	"context"
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

const resultJSON = `{"language":"ja","segments":[
{"start":1.5,"end":4.0,"text":" 沈むように "},
{"start":4.0,"end":7.25,"text":"溶けてゆくように"}]}`

func argValue(args []string, flag string) string {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestAlignText(t *testing.T) {
	var gotName string
	var gotArgs []string
	var gotLyrics string

	svc := NewService(Config{Language: "ja", WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		data, err := os.ReadFile(argValue(args, "--align"))
		if err != nil {
			return err
		}
		gotLyrics = string(data)
		return os.WriteFile(argValue(args, "--output"), []byte(resultJSON), 0o644)
	})

	asset := lyricdoc.AudioAsset{TrackID: "abcdefghijk", Path: "/audio/abcdefghijk.mp3"}
	lines, err := svc.AlignText(context.Background(), asset, "沈むように\n溶けてゆくように")
	if err != nil {
		t.Fatalf("AlignText failed: %v", err)
	}

	if gotName != DefaultCommand {
		t.Errorf("expected command %q, got %q", DefaultCommand, gotName)
	}
	if gotArgs[0] != asset.Path {
		t.Errorf("audio path should come first, got %v", gotArgs)
	}
	if argValue(gotArgs, "--model") != DefaultModel || argValue(gotArgs, "--language") != "ja" {
		t.Errorf("unexpected args %v", gotArgs)
	}
	if !slices.Contains(gotArgs, "--faster_whisper") || argValue(gotArgs, "--denoiser") != "demucs" {
		t.Errorf("default extra args missing: %v", gotArgs)
	}
	if gotLyrics != "沈むように\n溶けてゆくように" {
		t.Errorf("unexpected lyrics file %q", gotLyrics)
	}

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0].Text != "沈むように" || lines[0].Start != 1.5 || lines[0].End != 4.0 {
		t.Errorf("unexpected first line %+v", lines[0])
	}
}

func TestTranscribeAndAlign(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		if argValue(args, "--align") != "" {
			t.Errorf("transcription must not pass --align: %v", args)
		}
		return os.WriteFile(argValue(args, "--output"), []byte(resultJSON), 0o644)
	})

	lines, err := svc.TranscribeAndAlign(context.Background(), lyricdoc.AudioAsset{Path: "/a.mp3"})
	if err != nil {
		t.Fatalf("TranscribeAndAlign failed: %v", err)
	}
	if len(lines) != 2 || lines[1].Text != "溶けてゆくように" {
		t.Errorf("unexpected lines %+v", lines)
	}
}

func TestCommandFailure(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return errors.New("exit status 1")
	})

	if _, err := svc.TranscribeAndAlign(context.Background(), lyricdoc.AudioAsset{Path: "/a.mp3"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestMissingOutput(t *testing.T) {
	svc := NewService(Config{WorkDir: t.TempDir()})
	svc.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	})

	if _, err := svc.TranscribeAndAlign(context.Background(), lyricdoc.AudioAsset{Path: "/a.mp3"}); err == nil {
		t.Fatal("expected error when no result file is written")
	}
}

func TestAlignEmptyText(t *testing.T) {
	svc := NewService(Config{})
	if _, err := svc.AlignText(context.Background(), lyricdoc.AudioAsset{Path: "/a.mp3"}, "  "); err == nil {
		t.Fatal("expected error for empty text")
	}
}

package lyrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// transcribe 直接从音频识别歌词，作为所有站点都失败后的兜底
func (o *Orchestrator) transcribe(ctx context.Context, asset lyricdoc.AudioAsset) (*lyricdoc.Document, error) {
	if o.transcriber == nil {
		return nil, lyricdoc.Wrap(lyricdoc.ErrTranscriptionFailed, "no transcriber configured", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.TranscribeTimeout)
	defer cancel()

	start := time.Now()
	raw, err := o.transcriber.TranscribeAndAlign(ctx, asset)
	if err != nil {
		return nil, lyricdoc.Wrap(lyricdoc.ErrTranscriptionFailed, "transcribe "+asset.TrackID, err)
	}
	lines := sanitizeLines(raw)
	if len(lines) == 0 {
		return nil, lyricdoc.Wrap(lyricdoc.ErrTranscriptionFailed, "transcribe "+asset.TrackID, errors.New("no segments recognized"))
	}

	texts := make([]string, len(lines))
	for i, line := range lines {
		texts[i] = line.Text
	}

	logger.Info().
		Str("track_id", asset.TrackID).
		Int("lines", len(lines)).
		Dur("took", time.Since(start)).
		Msg("Audio transcribed")

	return &lyricdoc.Document{
		RawText: strings.Join(texts, "\n"),
		Lines:   lines,
		Title:   asset.Title,
		Source:  lyricdoc.SourceTranscription,
	}, nil
}

package lyrics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// 对齐结果中结束时间不晚于开始时间时补的时长
const minLineDuration = 0.5

// realign 用音频对齐歌词时间轴，失败时原样返回（保留均匀时间轴）
func (o *Orchestrator) realign(ctx context.Context, asset lyricdoc.AudioAsset, doc *lyricdoc.Document) *lyricdoc.Document {
	if o.transcriber == nil {
		return doc
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.AlignTimeout)
	defer cancel()

	start := time.Now()
	aligned, err := o.transcriber.AlignText(ctx, asset, doc.RawText)
	lines := sanitizeLines(aligned)
	if err == nil && len(lines) == 0 {
		err = errors.New("no aligned segments")
	}
	if err != nil {
		logger.Warn().
			Err(lyricdoc.Wrap(lyricdoc.ErrAlignmentDegraded, "align", err)).
			Str("track_id", asset.TrackID).
			Msg("Keeping uniform timing")
		return doc
	}

	logger.Info().
		Str("track_id", asset.TrackID).
		Int("lines", len(lines)).
		Dur("took", time.Since(start)).
		Msg("Lyrics realigned")

	out := doc.Clone()
	out.Lines = lines
	return out
}

// sanitizeLines 去掉空行，修正时间，并按开始时间稳定排序
func sanitizeLines(lines []lyricdoc.Line) []lyricdoc.Line {
	out := make([]lyricdoc.Line, 0, len(lines))
	for _, line := range lines {
		line.Text = strings.TrimSpace(line.Text)
		if line.Text == "" {
			continue
		}
		if line.Start < 0 {
			line.Start = 0
		}
		if line.End <= line.Start {
			line.End = line.Start + minLineDuration
		}
		out = append(out, line)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

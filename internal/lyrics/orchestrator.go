// Package lyrics acquires timed lyrics for a downloaded track: cache lookup,
// site scraping, audio alignment, transcription fallback and persistence.
package lyrics

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/ai"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/music"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultAlignTimeout      = 5 * time.Minute
	DefaultTranscribeTimeout = 10 * time.Minute
	DefaultAITimeout         = 30 * time.Second
)

var logger = logging.Component("lyrics")

// State 获取流程的阶段，仅用于日志
type State string

const (
	StateCacheHit             State = "CacheHit"
	StateScraping             State = "Scraping"
	StateRealigning           State = "Realigning"
	StateTranscribingFallback State = "TranscribingFallback"
	StatePersisted            State = "Persisted"
	StateFailed               State = "Failed"
)

// Transcriber 语音识别后端
type Transcriber interface {
	// AlignText 把已知歌词对齐到音频上
	AlignText(ctx context.Context, asset lyricdoc.AudioAsset, text string) ([]lyricdoc.Line, error)
	// TranscribeAndAlign 直接识别音频中的歌词
	TranscribeAndAlign(ctx context.Context, asset lyricdoc.AudioAsset) ([]lyricdoc.Line, error)
}

// Options 各阶段超时
type Options struct {
	AlignTimeout      time.Duration
	TranscribeTimeout time.Duration
	// AITimeout bounds each query refinement request.
	AITimeout time.Duration
}

// Orchestrator 歌词获取流程，同一首歌同一时刻只会执行一次
type Orchestrator struct {
	store       *Store
	resolver    music.Resolver
	transcriber Transcriber
	aiClient    ai.AiInterface
	opts        Options
	group       singleflight.Group
}

// NewOrchestrator 创建歌词获取流程，transcriber 可以为 nil
func NewOrchestrator(store *Store, resolver music.Resolver, transcriber Transcriber, opts Options) *Orchestrator {
	if opts.AlignTimeout <= 0 {
		opts.AlignTimeout = DefaultAlignTimeout
	}
	if opts.TranscribeTimeout <= 0 {
		opts.TranscribeTimeout = DefaultTranscribeTimeout
	}
	if opts.AITimeout <= 0 {
		opts.AITimeout = DefaultAITimeout
	}
	return &Orchestrator{
		store:       store,
		resolver:    resolver,
		transcriber: transcriber,
		opts:        opts,
	}
}

// WithAI 启用站点全部失败后的AI查询修正
func (o *Orchestrator) WithAI(client ai.AiInterface) {
	o.aiClient = client
}

// Acquire returns the timed lyrics of asset, from cache when present.
// Concurrent calls for one track share a single acquisition. When ctx ends
// first the caller gets ctx.Err() while the acquisition still finishes and
// caches its result.
func (o *Orchestrator) Acquire(ctx context.Context, asset lyricdoc.AudioAsset) (*lyricdoc.Document, error) {
	if !lyricdoc.ValidTrackID(asset.TrackID) {
		return nil, lyricdoc.Wrap(lyricdoc.ErrInvalidRequest, "track id "+asset.TrackID, nil)
	}

	ch := o.group.DoChan(asset.TrackID, func() (interface{}, error) {
		return o.acquire(context.WithoutCancel(ctx), asset)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*lyricdoc.Document).Clone(), nil
	}
}

func (o *Orchestrator) acquire(ctx context.Context, asset lyricdoc.AudioAsset) (*lyricdoc.Document, error) {
	start := time.Now()

	doc, err := o.store.Load(asset.TrackID)
	switch {
	case err == nil:
		o.logState(asset, StateCacheHit)
		return doc, nil
	case !errors.Is(err, fs.ErrNotExist):
		logger.Warn().Err(err).Str("track_id", asset.TrackID).Msg("Unreadable cache entry, acquiring again")
	}

	o.logState(asset, StateScraping)
	doc, ok := o.scrape(ctx, asset)
	if ok {
		if doc.Title == "" {
			doc.Title = asset.Title
		}
		o.logState(asset, StateRealigning)
		doc = o.realign(ctx, asset, doc)
	} else {
		o.logState(asset, StateTranscribingFallback)
		doc, err = o.transcribe(ctx, asset)
		if err != nil {
			logger.Error().
				Err(err).
				Str("track_id", asset.TrackID).
				Str("state", string(StateFailed)).
				Dur("took", time.Since(start)).
				Msg("Lyrics acquisition failed")
			return nil, err
		}
	}

	return o.persist(asset, doc, start), nil
}

// scrape 先按视频标题查询，失败时再用AI修正后的歌名查询一次
func (o *Orchestrator) scrape(ctx context.Context, asset lyricdoc.AudioAsset) (*lyricdoc.Document, bool) {
	if doc, ok := o.resolver.ResolveTitle(ctx, asset.Title); ok {
		return doc, true
	}
	if o.aiClient == nil {
		return nil, false
	}

	info, err := o.querySongInfo(ctx, asset.Title)
	if err != nil {
		logger.Warn().Err(err).Str("track_id", asset.TrackID).Msg("Song info refinement failed")
		return nil, false
	}
	if !info.IsSong || info.Title == "" {
		logger.Info().Str("track_id", asset.TrackID).Str("title", asset.Title).Msg("Media is not a song")
		return nil, false
	}
	logger.Info().Str("song", info.Title).Str("artist", info.Artist).Msg("Retrying with refined query")
	return o.resolver.Resolve(ctx, info.Title, info.Artist)
}

// persist 只写一次；已有缓存时以已有的为准
func (o *Orchestrator) persist(asset lyricdoc.AudioAsset, doc *lyricdoc.Document, start time.Time) *lyricdoc.Document {
	saved, err := o.store.Save(asset.TrackID, doc)
	if err != nil {
		logger.Error().Err(err).Str("track_id", asset.TrackID).Msg("Failed to persist lyrics")
		return doc
	}
	if !saved {
		if existing, err := o.store.Load(asset.TrackID); err == nil {
			doc = existing
		}
	}

	logger.Info().
		Str("track_id", asset.TrackID).
		Str("state", string(StatePersisted)).
		Str("source", string(doc.Source)).
		Int("lines", len(doc.Lines)).
		Dur("took", time.Since(start)).
		Msg("Lyrics acquired")
	return doc
}

func (o *Orchestrator) logState(asset lyricdoc.AudioAsset, state State) {
	logger.Info().
		Str("track_id", asset.TrackID).
		Str("title", asset.Title).
		Str("state", string(state)).
		Msg("Lyrics acquisition")
}

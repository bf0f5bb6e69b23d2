package music

import (
	"context"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
)

// Provider 歌词提供商名称
type Provider string

const (
	ProviderKasitime        Provider = "kasitime"
	ProviderMojim           Provider = "mojim"
	ProviderAZLyrics        Provider = "azlyrics"
	ProviderLyricsTranslate Provider = "lyricstranslate"
	ProviderGenius          Provider = "genius"
	ProviderLRCLib          Provider = "lrclib"
	ProviderNetEase         Provider = "netease"
)

var logger = logging.Component("lyrics-chain")

// Chain 按固定优先级依次尝试各歌词站点
type Chain struct {
	sources []Source
}

// NewChain 创建新的回退链，sources 的顺序即优先级
func NewChain(sources ...Source) *Chain {
	if len(sources) == 0 {
		logger.Warn().Msg("No lyrics sources configured")
		return &Chain{}
	}

	logger.Info().
		Int("source_count", len(sources)).
		Str("primary_source", string(sources[0].Source())).
		Msg("Lyrics fallback chain initialized")

	return &Chain{sources: sources}
}

// Resolve returns the first document any source produces, trying each source
// exactly once in priority order.
func (c *Chain) Resolve(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	for i, source := range c.sources {
		if ctx.Err() != nil {
			logger.Warn().Err(ctx.Err()).Msg("Resolution cancelled")
			return nil, false
		}

		logger.Info().
			Str("song", song).
			Str("artist", artist).
			Str("source", string(source.Source())).
			Int("attempt", i+1).
			Int("total_sources", len(c.sources)).
			Msg("Trying lyrics source")

		doc, ok := source.Search(ctx, song, artist)
		if ok && doc != nil && len(doc.Lines) > 0 {
			logger.Info().
				Str("source", string(source.Source())).
				Str("title", doc.Title).
				Int("lines", len(doc.Lines)).
				Msg("Successfully got lyrics")
			return doc, true
		}
	}

	logger.Warn().
		Str("song", song).
		Str("artist", artist).
		Err(lyricdoc.ErrAllSourcesExhausted).
		Msg("No source returned lyrics")
	return nil, false
}

// ResolveTitle splits a media title into artist and song and resolves that
// first; when it finds nothing the whole title is searched as a song name.
func (c *Chain) ResolveTitle(ctx context.Context, videoTitle string) (*lyricdoc.Document, bool) {
	artist, song := ExtractArtistTitle(videoTitle)
	if artist != "" {
		if doc, ok := c.Resolve(ctx, song, artist); ok {
			return doc, true
		}
	}
	return c.Resolve(ctx, videoTitle, "")
}

// Sources 获取所有来源名称，按优先级排列
func (c *Chain) Sources() []lyricdoc.Source {
	names := make([]lyricdoc.Source, len(c.sources))
	for i, source := range c.sources {
		names[i] = source.Source()
	}
	return names
}

// Len 获取来源数量
func (c *Chain) Len() int {
	return len(c.sources)
}

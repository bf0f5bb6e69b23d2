// Package ytaudio turns a YouTube link into a local mp3 file.
package ytaudio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/fileutil"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	musiccache "github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/musicCache"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 5 * time.Minute
	watchURL       = "https://www.youtube.com/watch?v="
)

var (
	logger = logging.Component("audio-fetcher")

	linkPattern = regexp.MustCompile(`^(https://)?(music\.)?youtube\.com/watch\?v=([A-Za-z0-9_-]{11}).*`)

	ErrInvalidLink = errors.New("invalid link")
)

// ParseLink returns the 11 character track id of a YouTube watch link.
func ParseLink(ref string) (string, error) {
	match := linkPattern.FindStringSubmatch(ref)
	if match == nil {
		return "", ErrInvalidLink
	}
	return match[3], nil
}

// Downloader fetches the audio of url into outputTemplate (a yt-dlp output
// template) as mp3 and returns the media title.
type Downloader func(ctx context.Context, url, outputTemplate string) (title string, err error)

// TitleLookup resolves the media title without downloading.
type TitleLookup func(ctx context.Context, url string) (string, error)

// Config 音频下载配置
type Config struct {
	Dir          string
	Timeout      time.Duration
	AudioQuality string
}

// Fetcher 下载并缓存音频，同一首歌同一时刻只会下载一次
type Fetcher struct {
	cfg      Config
	titles   musiccache.Index
	download Downloader
	lookup   TitleLookup
	group    singleflight.Group
}

// NewFetcher 创建音频下载器，titles 用于记住已下载音频的标题
func NewFetcher(cfg Config, titles musiccache.Index) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.AudioQuality == "" {
		cfg.AudioQuality = "0"
	}
	f := &Fetcher{cfg: cfg, titles: titles}
	f.download = f.ytdlpDownload
	f.lookup = ytdlpTitle
	return f
}

// WithDownloader replaces yt-dlp (for testing).
func (f *Fetcher) WithDownloader(download Downloader, lookup TitleLookup) {
	f.download = download
	f.lookup = lookup
}

// Path 返回音频文件路径
func (f *Fetcher) Path(trackID string) string {
	return filepath.Join(f.cfg.Dir, trackID+".mp3")
}

// Fetch 获取音频，本地已有时直接复用
func (f *Fetcher) Fetch(ctx context.Context, ref string) (lyricdoc.AudioAsset, error) {
	trackID, err := ParseLink(ref)
	if err != nil {
		return lyricdoc.AudioAsset{}, lyricdoc.Wrap(lyricdoc.ErrInvalidRequest, ref, err)
	}

	ch := f.group.DoChan(trackID, func() (interface{}, error) {
		// 下载不随单个请求取消，其他等待者仍可复用结果
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.cfg.Timeout)
		defer cancel()
		return f.fetch(flightCtx, trackID)
	})

	select {
	case <-ctx.Done():
		return lyricdoc.AudioAsset{}, lyricdoc.Wrap(lyricdoc.ErrAssetUnavailable, trackID, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return lyricdoc.AudioAsset{}, res.Err
		}
		return res.Val.(lyricdoc.AudioAsset), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, trackID string) (lyricdoc.AudioAsset, error) {
	asset := lyricdoc.AudioAsset{TrackID: trackID, Path: f.Path(trackID)}
	url := watchURL + trackID

	if fileutil.Exists(asset.Path) {
		asset.Title = f.cachedTitle(ctx, trackID, url)
		return withSize(asset)
	}

	if err := os.MkdirAll(f.cfg.Dir, 0o755); err != nil {
		return asset, lyricdoc.Wrap(lyricdoc.ErrAssetUnavailable, "create audio dir", err)
	}

	start := time.Now()
	title, err := f.download(ctx, url, filepath.Join(f.cfg.Dir, trackID+".%(ext)s"))
	if err == nil && !fileutil.Exists(asset.Path) {
		err = errors.New("downloader produced no mp3")
	}
	if err != nil {
		f.cleanup(trackID)
		return asset, lyricdoc.Wrap(lyricdoc.ErrAssetUnavailable, "download "+trackID, err)
	}

	if title == "" {
		title = trackID
	}
	asset.Title = title
	if f.titles != nil {
		if err := f.titles.Set(ctx, trackID, title); err != nil {
			logger.Warn().Err(err).Str("track_id", trackID).Msg("Failed to record title")
		}
	}

	logger.Info().
		Str("track_id", trackID).
		Str("title", title).
		Dur("took", time.Since(start)).
		Msg("Audio downloaded")
	return withSize(asset)
}

// cachedTitle 标题索引 > 元数据查询 > 视频ID
func (f *Fetcher) cachedTitle(ctx context.Context, trackID, url string) string {
	if f.titles != nil {
		if title, ok := f.titles.Get(ctx, trackID); ok {
			return title
		}
	}
	if f.lookup != nil {
		title, err := f.lookup(ctx, url)
		if err == nil && title != "" {
			if f.titles != nil {
				f.titles.Set(ctx, trackID, title)
			}
			return title
		}
		logger.Warn().Err(err).Str("track_id", trackID).Msg("Title lookup failed")
	}
	return trackID
}

// 下载失败时清理 yt-dlp 留下的中间文件
func (f *Fetcher) cleanup(trackID string) {
	matches, _ := filepath.Glob(filepath.Join(f.cfg.Dir, trackID+".*"))
	for _, m := range matches {
		os.Remove(m)
	}
}

func withSize(asset lyricdoc.AudioAsset) (lyricdoc.AudioAsset, error) {
	info, err := os.Stat(asset.Path)
	if err != nil {
		return asset, lyricdoc.Wrap(lyricdoc.ErrAssetUnavailable, "stat audio", err)
	}
	asset.SizeBytes = info.Size()
	return asset, nil
}

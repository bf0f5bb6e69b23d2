package lrclib

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

const defaultBaseURL = "https://lrclib.net/api"

var logger = logging.Component("lrclib")

// Client LRCLib客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	AlbumName    string `json:"albumName"`
	Duration     int    `json:"duration"`
	Instrumental bool   `json:"instrumental"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// LRCLibSearchResponse LRCLib API搜索响应（列表）
type LRCLibSearchResponse []LRCLibResponse

// NewClient 创建新的LRCLib客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, baseURL: defaultBaseURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceLRCLib
}

// Search 通过歌名和歌手搜索歌词（LRCLib不需要单独的搜索步骤）
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, song, artist)
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "lrclib search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("LRCLib returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, song, artist string) (*lyricdoc.Document, error) {
	params := url.Values{}
	params.Set("track_name", song)
	if artist != "" {
		params.Set("artist_name", artist)
	}

	var responses LRCLibSearchResponse
	if err := c.scraper.GetJSON(ctx, fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode()), &responses); err != nil {
		return nil, err
	}

	logger.Debug().Int("results", len(responses)).Str("song", song).Str("artist", artist).Msg("LRCLib search finished")

	best := findBestMatch(responses, song, artist)
	if best == nil {
		return nil, fmt.Errorf("no lyrics found for '%s - %s'", song, artist)
	}

	// 只需要文本，时间轴由后续对齐生成；纯文本优先
	text := best.PlainLyrics
	if text == "" {
		text = lyricdoc.PlainText(best.SyncedLyrics)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("selected result has no lyrics for '%s - %s'", song, artist)
	}

	doc := lyricdoc.Format(text)
	doc.Title = best.TrackName
	doc.Source = lyricdoc.SourceLRCLib
	doc.URL = fmt.Sprintf("%s/get/%d", c.baseURL, best.ID)
	return doc, nil
}

// findBestMatch 从搜索结果中找到最佳匹配：标题+歌手 > 仅标题 > 第一个有歌词的结果
func findBestMatch(responses LRCLibSearchResponse, targetTitle, targetArtist string) *LRCLibResponse {
	var titleMatch, firstWithLyrics *LRCLibResponse

	for i := range responses {
		response := &responses[i]
		if response.Instrumental || (response.PlainLyrics == "" && response.SyncedLyrics == "") {
			continue
		}
		if firstWithLyrics == nil {
			firstWithLyrics = response
		}
		if !containsIgnoreCase(response.TrackName, targetTitle) {
			continue
		}
		if targetArtist != "" && containsIgnoreCase(response.ArtistName, targetArtist) {
			return response
		}
		if titleMatch == nil {
			titleMatch = response
		}
	}

	if titleMatch != nil {
		return titleMatch
	}
	return firstWithLyrics
}

// containsIgnoreCase 忽略大小写检查包含关系
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

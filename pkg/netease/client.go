package netease

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

const defaultBaseURL = "https://music.163.com"

var logger = logging.Component("netease")

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Result struct {
		Songs []NeteaseSong `json:"songs"`
	} `json:"result"`
}

// NeteaseSong 搜索结果中的单曲
type NeteaseSong struct {
	ID      int    `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Lrc struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
}

// Client 网易云音乐客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
	cookie  string
}

// NewClient 创建新的网易云音乐客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{
		scraper: scraper,
		baseURL: defaultBaseURL,
		cookie:  os.Getenv("NETEASE_COOKIE"),
	}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceNetEase
}

// Search 搜索歌曲并获取歌词原文
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, song, artist)
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "netease search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("NetEase returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, song, artist string) (*lyricdoc.Document, error) {
	match, err := c.SearchSong(ctx, song, artist)
	if err != nil {
		return nil, err
	}

	lrc, err := c.GetLyrics(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	text := lyricdoc.PlainText(lrc)
	if text == "" {
		return nil, fmt.Errorf("song %d has no lyrics", match.ID)
	}

	doc := lyricdoc.Format(text)
	doc.Title = match.Name
	doc.Source = lyricdoc.SourceNetEase
	doc.URL = fmt.Sprintf("%s/#/song?id=%d", defaultBaseURL, match.ID)
	return doc, nil
}

// SearchSong 搜索歌曲，返回最佳匹配
func (c *Client) SearchSong(ctx context.Context, title, artist string) (*NeteaseSong, error) {
	searchURL := fmt.Sprintf("%s/api/search/get/web?csrf_token=hlpretag&hlposttag=&s=%s&type=1&limit=100",
		c.baseURL, url.QueryEscape(scrape.Query(title, artist)))
	logger.Debug().Str("url", searchURL).Msg("Searching NetEase")

	var searchResp NeteaseSearchResponse
	if err := c.scraper.GetJSON(ctx, searchURL, &searchResp, scrape.WithHeader("Cookie", c.cookie)); err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	if len(searchResp.Result.Songs) == 0 {
		return nil, fmt.Errorf("no songs found for '%s'", title)
	}

	song := findBestMatch(searchResp, artist, title)
	if song == nil {
		return nil, fmt.Errorf("no matching song found for '%s' by '%s'", title, artist)
	}
	return song, nil
}

// GetLyrics 获取LRC歌词
func (c *Client) GetLyrics(ctx context.Context, songID int) (string, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%d&lv=-1&kv=-1", c.baseURL, songID)

	var lyricResp NeteaseLyricResponse
	if err := c.scraper.GetJSON(ctx, lyricURL, &lyricResp, scrape.WithHeader("Cookie", c.cookie)); err != nil {
		return "", fmt.Errorf("lyric request failed: %w", err)
	}
	return lyricResp.Lrc.Lyric, nil
}

// findBestMatch 找到最佳匹配的歌曲
func findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string) *NeteaseSong {
	songs := resp.Result.Songs
	for i := range songs {
		song := &songs[i]
		// 判断歌曲名包含关系
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}
		if targetArtist == "" {
			return song
		}

		// artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if containsIgnoreCase(artist.Name, targetArtist) {
				logger.Debug().Str("song", song.Name).Int("id", song.ID).Msg("Found matching song")
				return song
			}
		}
	}

	// 如果没有找到完全匹配的，返回第一个匹配标题的
	if len(songs) > 0 && containsIgnoreCase(songs[0].Name, targetTitle) {
		return &songs[0]
	}
	return nil
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}

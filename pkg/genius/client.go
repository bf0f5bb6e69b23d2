// Package genius resolves songs through the public genius.com search API and
// scrapes the lyrics containers of the song page.
package genius

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

const (
	defaultAPIURL  = "https://genius.com/api"
	lyricsSelector = `div[data-lyrics-container="true"]`
	titleSelector  = `h1[class*="SongHeader__Title"]`
)

var logger = logging.Component("genius")

// SearchResponse Genius 搜索API响应
type SearchResponse struct {
	Response struct {
		Sections []struct {
			Hits []struct {
				Result struct {
					Title string `json:"title"`
					URL   string `json:"url"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"sections"`
	} `json:"response"`
}

// Client Genius客户端
type Client struct {
	scraper *scrape.Client
	apiURL  string
}

// NewClient 创建新的Genius客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, apiURL: defaultAPIURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceGenius
}

// Search 搜索并抓取第一条命中的歌词
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, scrape.Query(song, artist))
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "genius search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("Genius returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, query string) (*lyricdoc.Document, error) {
	var resp SearchResponse
	searchURL := fmt.Sprintf("%s/search/song?q=%s", c.apiURL, url.QueryEscape(query))
	if err := c.scraper.GetJSON(ctx, searchURL, &resp); err != nil {
		return nil, err
	}

	sections := resp.Response.Sections
	if len(sections) == 0 || len(sections[0].Hits) == 0 || sections[0].Hits[0].Result.URL == "" {
		return nil, fmt.Errorf("no result for %q", query)
	}
	return c.GetLyricsByURL(ctx, sections[0].Hits[0].Result.URL)
}

// GetLyricsByURL 抓取指定歌曲页面的歌词，页面会把歌词拆到多个容器里
func (c *Client) GetLyricsByURL(ctx context.Context, pageURL string) (*lyricdoc.Document, error) {
	page, err := c.scraper.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	containers := page.Find(lyricsSelector)
	parts := make([]string, 0, containers.Length())
	for i := range containers.Nodes {
		if text := scrape.SelectionText(containers.Eq(i)); text != "" {
			parts = append(parts, text)
		}
	}
	text := strings.TrimSpace(lyricdoc.StripAnnotations(strings.Join(parts, "\n")))
	if text == "" {
		return nil, fmt.Errorf("lyrics block missing on %s", pageURL)
	}

	doc := lyricdoc.Format(text)
	doc.Title = scrape.CleanText(page, titleSelector)
	doc.Source = lyricdoc.SourceGenius
	doc.URL = pageURL
	return doc, nil
}

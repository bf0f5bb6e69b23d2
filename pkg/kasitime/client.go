// Package kasitime 歌詞タイム (kasi-time.com) 歌词抓取
package kasitime

import (
	"context"
	"fmt"
	"net/url"
	"regexp"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

const defaultBaseURL = "https://www.kasi-time.com"

var (
	logger = logging.Component("kasitime")

	// 搜索结果页中第一首歌的链接
	itemLinkPattern = regexp.MustCompile(`<a href="(item-\d+\.html)"`)
)

// Client 歌詞タイム客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
}

// NewClient 创建新的歌詞タイム客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, baseURL: defaultBaseURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceKasitime
}

// Search 搜索并抓取第一条结果的歌词
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, scrape.Query(song, artist))
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "kasitime search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("Kasitime returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, query string) (*lyricdoc.Document, error) {
	searchURL := fmt.Sprintf("%s/search.php?keyword=%s", c.baseURL, url.QueryEscape(query))
	page, err := c.scraper.GetString(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	match := itemLinkPattern.FindStringSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("no result for %q", query)
	}
	return c.GetLyricsByURL(ctx, c.baseURL+"/"+match[1])
}

// GetLyricsByURL 抓取指定歌曲页面的歌词
func (c *Client) GetLyricsByURL(ctx context.Context, pageURL string) (*lyricdoc.Document, error) {
	page, err := c.scraper.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text := scrape.SelectionText(page.Find("div.lyrics").First())
	if text == "" {
		return nil, fmt.Errorf("lyrics block missing on %s", pageURL)
	}

	doc := lyricdoc.Format(text)
	doc.Title = scrape.CleanText(page, "h1.title")
	doc.Source = lyricdoc.SourceKasitime
	doc.URL = pageURL
	return doc, nil
}

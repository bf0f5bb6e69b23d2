// Package lyricstranslate 抓取 lyricstranslate.com 的歌词原文
package lyricstranslate

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
	"github.com/PuerkitoBio/goquery"
)

const defaultBaseURL = "https://lyricstranslate.com"

var logger = logging.Component("lyricstranslate")

// Client LyricsTranslate客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
}

// NewClient 创建新的LyricsTranslate客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, baseURL: defaultBaseURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceLyricsTranslate
}

// Search 搜索并抓取第一条结果的歌词
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, scrape.Query(song, artist))
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "lyricstranslate search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("LyricsTranslate returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, query string) (*lyricdoc.Document, error) {
	searchURL := fmt.Sprintf("%s/en/search/node/%s", c.baseURL, url.PathEscape(query))
	results, err := c.scraper.GetDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	var href string
	results.Find("a.search-result__title").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		link, _ := a.Attr("href")
		if strings.HasPrefix(link, "/en/") {
			href = link
			return false
		}
		return true
	})
	if href == "" {
		return nil, fmt.Errorf("no result for %q", query)
	}
	return c.GetLyricsByURL(ctx, c.baseURL+href)
}

// GetLyricsByURL 抓取指定歌曲页面的歌词
func (c *Client) GetLyricsByURL(ctx context.Context, pageURL string) (*lyricdoc.Document, error) {
	page, err := c.scraper.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text := scrape.SelectionText(page.Find("div.ltf div").First())
	if text == "" {
		return nil, fmt.Errorf("lyrics block missing on %s", pageURL)
	}

	doc := lyricdoc.Format(text)
	doc.Title = scrape.CleanText(page, "h2.title-h2")
	doc.Source = lyricdoc.SourceLyricsTranslate
	doc.URL = pageURL
	return doc, nil
}

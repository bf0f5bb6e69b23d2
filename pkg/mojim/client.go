// Package mojim 魔镜歌词网 (mojim.com) 歌词抓取
package mojim

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
)

const defaultBaseURL = "https://mojim.com"

var logger = logging.Component("mojim")

// Client 魔镜歌词网客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
}

// NewClient 创建新的魔镜歌词网客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, baseURL: defaultBaseURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceMojim
}

// Search 搜索并抓取第一条结果的歌词
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, scrape.Query(song, artist))
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "mojim search", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("Mojim returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, query string) (*lyricdoc.Document, error) {
	// t3 表示按歌名搜索
	searchURL := fmt.Sprintf("%s/%s.html?t3", c.baseURL, url.PathEscape(query))
	results, err := c.scraper.GetDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	href, ok := results.Find("div.mxsh_ll1 a").First().Attr("href")
	if !ok || href == "" {
		return nil, fmt.Errorf("no result for %q", query)
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return c.GetLyricsByURL(ctx, c.baseURL+href)
}

// GetLyricsByURL 抓取指定歌曲页面的歌词
func (c *Client) GetLyricsByURL(ctx context.Context, pageURL string) (*lyricdoc.Document, error) {
	page, err := c.scraper.GetDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(lyricdoc.StripAnnotations(scrape.SelectionText(page.Find("div#fsZx2").First())))
	if text == "" {
		return nil, fmt.Errorf("lyrics block missing on %s", pageURL)
	}

	doc := lyricdoc.Format(text)
	doc.Title = scrape.CleanText(page, "div.fsZx3")
	doc.Source = lyricdoc.SourceMojim
	doc.URL = pageURL
	return doc, nil
}

// Package azlyrics scrapes azlyrics.com. The site addresses songs by a
// slugged artist/title pair, so both are required.
package azlyrics

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/lyricdoc"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/scrape"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultBaseURL = "https://www.azlyrics.com"

var (
	logger = logging.Component("azlyrics")

	errArtistRequired = errors.New("artist is required")

	slugPattern      = regexp.MustCompile(`[^\p{L}\p{N}_]`)
	titlePattern     = regexp.MustCompile(`<title>(.*?) Lyrics \| AZLyrics\.com</title>`)
	blankRunsPattern = regexp.MustCompile(`\n\s*\n`)

	// 歌词位于授权声明注释与 MxM 广告位之间
	lyricsPattern = regexp.MustCompile(`(?s)<!-- Usage of azlyrics\.com content by any third-party lyrics provider is prohibited by our licensing agreement\. Sorry about that\. -->(.*?)<!-- MxM banner -->`)

	lower = cases.Lower(language.Und)
)

// Client AZLyrics客户端
type Client struct {
	scraper *scrape.Client
	baseURL string
}

// NewClient 创建新的AZLyrics客户端
func NewClient(scraper *scrape.Client) *Client {
	return &Client{scraper: scraper, baseURL: defaultBaseURL}
}

// Source 返回歌词来源
func (c *Client) Source() lyricdoc.Source {
	return lyricdoc.SourceAZLyrics
}

// Search 按歌手与歌名直接访问歌词页
func (c *Client) Search(ctx context.Context, song, artist string) (*lyricdoc.Document, bool) {
	doc, err := c.search(ctx, song, artist)
	if err != nil {
		logger.Info().
			Err(lyricdoc.Wrap(lyricdoc.ErrSourceUnavailable, "azlyrics lookup", err)).
			Str("song", song).
			Str("artist", artist).
			Msg("AZLyrics returned nothing")
		return nil, false
	}
	return doc, true
}

func (c *Client) search(ctx context.Context, song, artist string) (*lyricdoc.Document, error) {
	artistSlug, songSlug := Slug(artist), Slug(song)
	if artistSlug == "" {
		return nil, errArtistRequired
	}
	if songSlug == "" {
		return nil, fmt.Errorf("empty song name")
	}
	return c.GetLyricsByURL(ctx, fmt.Sprintf("%s/lyrics/%s/%s.html", c.baseURL, artistSlug, songSlug))
}

// GetLyricsByURL 抓取指定歌曲页面的歌词
func (c *Client) GetLyricsByURL(ctx context.Context, pageURL string) (*lyricdoc.Document, error) {
	page, err := c.scraper.GetString(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	match := lyricsPattern.FindStringSubmatch(page)
	if match == nil {
		return nil, fmt.Errorf("lyrics block missing on %s", pageURL)
	}
	text := scrape.HTMLFragmentText(match[1])
	text = blankRunsPattern.ReplaceAllString(text, "\n\n")
	if text == "" {
		return nil, fmt.Errorf("empty lyrics on %s", pageURL)
	}

	doc := lyricdoc.Format(text)
	if m := titlePattern.FindStringSubmatch(page); m != nil {
		doc.Title = strings.TrimSpace(m[1])
	}
	doc.Source = lyricdoc.SourceAZLyrics
	doc.URL = pageURL
	return doc, nil
}

// Slug lower-cases s and drops everything that is not a letter or digit,
// which is how the site builds its paths.
func Slug(s string) string {
	return slugPattern.ReplaceAllString(lower.String(s), "")
}

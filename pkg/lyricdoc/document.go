// Package lyricdoc holds the lyric document model shared by the scraping
// adapters, the transcribers and the acquisition pipeline.
package lyricdoc

import (
	"regexp"
)

// Source 歌词来源
type Source string

const (
	SourceKasitime        Source = "kasitime"
	SourceMojim           Source = "mojim"
	SourceAZLyrics        Source = "azlyrics"
	SourceLyricsTranslate Source = "lyricstranslate"
	SourceGenius          Source = "genius"
	SourceLRCLib          Source = "lrclib"
	SourceNetEase         Source = "netease"
	// SourceTranscription marks documents produced from the audio itself.
	SourceTranscription Source = "transcription"
)

// Line 歌词行，时间单位为秒
type Line struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Document 带时间轴的歌词文档
type Document struct {
	RawText string `json:"lyrics"`
	Lines   []Line `json:"lines"`
	Title   string `json:"title"`
	Source  Source `json:"source"`
	URL     string `json:"url,omitempty"`
}

// Clone returns a deep copy so callers can rewrite timings without touching
// the original.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Lines = append([]Line(nil), d.Lines...)
	return &c
}

// AudioAsset is a downloaded audio track. It belongs to the audio fetcher;
// everything else only reads it.
type AudioAsset struct {
	TrackID   string
	Title     string
	Path      string
	SizeBytes int64
}

var trackIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ValidTrackID reports whether id can be used verbatim as a cache file name.
func ValidTrackID(id string) bool {
	return trackIDPattern.MatchString(id)
}

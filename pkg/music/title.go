package music

import (
	"regexp"
	"strings"
)

const titleSeparator = " - "

// 出现在后半部分时说明它不是歌名，例如 "歌曲 - 歌手 Official MV"
var notSongMarkers = []string{"official", "mv", "m/v"}

var bracketTitlePattern = regexp.MustCompile(`(.+?)「(.+?)」`)

// ExtractArtistTitle 从视频标题中提取歌手和歌名。
// 常见格式: "歌手 - 歌曲", "歌曲 - 歌手 (Official MV)", "歌手「歌曲」"。
// 这是尽力而为的启发式规则，结果可能颠倒。
func ExtractArtistTitle(videoTitle string) (artist, song string) {
	if before, after, found := strings.Cut(videoTitle, titleSeparator); found {
		artist, song = before, after

		lower := strings.ToLower(song)
		for _, marker := range notSongMarkers {
			if strings.Contains(lower, marker) {
				artist, song = song, artist
				break
			}
		}
		return artist, song
	}

	if match := bracketTitlePattern.FindStringSubmatch(videoTitle); match != nil {
		return strings.TrimSpace(match[1]), strings.TrimSpace(match[2])
	}

	return "", videoTitle
}

package lyricdoc

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	lrcTimePattern = regexp.MustCompile(`^\[(\d{2,3}):(\d{2})(?:\.(\d{1,3}))?\]`)
	lrcTagPattern  = regexp.MustCompile(`\[[^\]]*\]`)
)

// ParseLRC 解析LRC格式歌词，按时间排序。一行可以带多个时间标签，
// 每行的结束时间取下一行的开始时间，最后一行沿用默认时长。
func ParseLRC(lrc string) []Line {
	var result []Line

	for _, raw := range strings.Split(lrc, "\n") {
		rest := strings.TrimSpace(raw)
		var starts []float64
		for {
			match := lrcTimePattern.FindStringSubmatch(rest)
			if match == nil {
				break
			}
			starts = append(starts, lrcSeconds(match[1], match[2], match[3]))
			rest = rest[len(match[0]):]
		}

		text := strings.TrimSpace(rest)
		if len(starts) == 0 || text == "" {
			continue
		}
		for _, start := range starts {
			result = append(result, Line{Text: text, Start: start})
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Start < result[j].Start })

	for i := range result {
		if i+1 < len(result) && result[i+1].Start > result[i].Start {
			result[i].End = result[i+1].Start
		} else {
			result[i].End = result[i].Start + LineDuration
		}
	}
	return result
}

func lrcSeconds(minStr, secStr, msStr string) float64 {
	min, _ := strconv.Atoi(minStr)
	sec, _ := strconv.Atoi(secStr)
	ms := 0
	if msStr != "" {
		ms, _ = strconv.Atoi(msStr)
		// .1 表示 100ms，.49 表示 490ms
		switch len(msStr) {
		case 1:
			ms *= 100
		case 2:
			ms *= 10
		}
	}
	return float64(min*60+sec) + float64(ms)/1000
}

// PlainText reduces LRC to its lyric lines in playback order. Text without
// any timestamps only has its [..] tags removed.
func PlainText(lrc string) string {
	lrc = strings.ReplaceAll(lrc, "\r\n", "\n")
	if lines := ParseLRC(lrc); len(lines) > 0 {
		texts := make([]string, len(lines))
		for i, line := range lines {
			texts[i] = line.Text
		}
		return strings.Join(texts, "\n")
	}

	var b strings.Builder
	for _, line := range strings.Split(lrc, "\n") {
		text := strings.TrimSpace(lrcTagPattern.ReplaceAllString(line, ""))
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

package lyricdoc

import (
	"regexp"
	"strings"
)

// LineDuration 未对齐时每行的默认时长（秒）
const LineDuration = 3.0

var annotationPattern = regexp.MustCompile(`\[.*?\]`)

// Format turns raw multi-line text into a document with naive uniform timing:
// the i-th non-blank line covers [3i, 3i+3). Title, Source and URL are left
// for the caller.
func Format(raw string) *Document {
	doc := &Document{
		RawText: raw,
		Lines:   []Line{},
	}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	i := 0
	for _, line := range strings.Split(raw, "\n") {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		doc.Lines = append(doc.Lines, Line{
			Text:  text,
			Start: float64(i) * LineDuration,
			End:   float64(i+1) * LineDuration,
		})
		i++
	}
	return doc
}

// StripAnnotations removes bracketed editorial notes such as "[Chorus]".
func StripAnnotations(s string) string {
	return annotationPattern.ReplaceAllString(s, "")
}

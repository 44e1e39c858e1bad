package ytdlp

import (
	"regexp"
	"strconv"
)

var progressPattern = regexp.MustCompile(`(?i)\[download\]\s+(\d+(?:\.\d+)?)%`)

// ParseProgress extracts the percentage from a yt-dlp "[download]  42.0% of ..." line.
//
// Lines without a percentage return false.
func ParseProgress(line string) (float64, bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}

	p, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return p, true
}

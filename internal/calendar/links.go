package calendar

import (
	"fmt"
	"regexp"
)

var (
	zoomPattern  = regexp.MustCompile(`https://(?:[\w-]+\.)?zoom\.us/(?:j|w|wc)/(\d+)(?:\?pwd=([a-zA-Z0-9.]+))?`)
	teamsPattern = regexp.MustCompile(`https://teams\.microsoft\.com/l/meetup-join/[^\s"<>]+`)
)

// ExtractZoomLink finds the first Zoom meeting link in the texts and
// normalises it to https://zoom.us/j/<id>, keeping the pwd parameter.
func ExtractZoomLink(texts ...string) string {
	for _, s := range texts {
		m := zoomPattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		if m[2] != "" {
			return fmt.Sprintf("https://zoom.us/j/%s?pwd=%s", m[1], m[2])
		}
		return "https://zoom.us/j/" + m[1]
	}
	return ""
}

// ExtractTeamsLink finds the first Teams meet-up link in the texts.
func ExtractTeamsLink(texts ...string) string {
	for _, s := range texts {
		if m := teamsPattern.FindString(s); m != "" {
			return m
		}
	}
	return ""
}

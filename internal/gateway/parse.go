package gateway

import (
	"regexp"
	"strings"
)

// ContentKind tags the shape of a parsed model response.
type ContentKind int

const (
	// TextOnly means no image marker was found; Text carries the full body.
	TextOnly ContentKind = iota
	// ImageHTTP means the image marker pointed at an http(s) URL.
	ImageHTTP
	// ImageInline means the image was embedded as a base64 data URI.
	ImageInline
)

// Content is the tagged result of parsing a model response body. For the two
// image kinds, ImageURL holds either the remote URL or a reassembled data URL
// and Text holds whatever caption remained around the marker.
type Content struct {
	Kind     ContentKind
	ImageURL string
	Text     string
}

var (
	httpImagePattern   = regexp.MustCompile(`!\[image\]\((https?://[^\s)]+)\)`)
	inlineImagePattern = regexp.MustCompile(`!\[image\]\(data:image/[^;]+;base64,([^)]+)\)`)
)

// ParseContent extracts an embedded markdown image reference from a model
// response. The URL form takes precedence over the inline-base64 form; text
// left over after stripping the marker becomes the caption. A body with no
// image marker is caption-only.
func ParseContent(body string) Content {
	if m := httpImagePattern.FindStringSubmatch(body); m != nil {
		return Content{
			Kind:     ImageHTTP,
			ImageURL: m[1],
			Text:     strings.TrimSpace(httpImagePattern.ReplaceAllString(body, "")),
		}
	}
	if m := inlineImagePattern.FindStringSubmatch(body); m != nil {
		return Content{
			Kind:     ImageInline,
			ImageURL: "data:image/png;base64," + m[1],
			Text:     strings.TrimSpace(inlineImagePattern.ReplaceAllString(body, "")),
		}
	}
	return Content{Kind: TextOnly, Text: body}
}

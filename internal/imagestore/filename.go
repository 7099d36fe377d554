package imagestore

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nanobanana/supermarket/internal/models"
)

// Stored files follow `<phone>-<step>-<title>-<timestampMillis>.<ext>`. The
// history listing reconstructs type/title/timestamp purely by splitting on
// "-", so the sanitizer collapses runs of separators to keep titles
// round-trippable.

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeTitle reduces a transformation title to filename-safe characters.
func SanitizeTitle(title string) string {
	sanitized := strings.Trim(nonAlphanumeric.ReplaceAllString(title, "-"), "-")
	if sanitized == "" {
		return "generated"
	}
	return sanitized
}

// BuildFilename assembles the canonical stored name for a generated image.
func BuildFilename(phone string, step models.Step, title string, ts time.Time, ext string) string {
	if ext == "" {
		ext = ".png"
	}
	return fmt.Sprintf("%s-%s-%s-%d%s", phone, step, SanitizeTitle(title), ts.UnixMilli(), ext)
}

// Record is the metadata recovered from a stored filename.
type Record struct {
	Phone     string
	Step      models.Step
	Title     string
	Timestamp int64
	Ext       string
}

// ParseFilename recovers a Record from a stored name. It returns false for
// names that do not follow the convention.
func ParseFilename(name string) (Record, bool) {
	ext := ""
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		ext = name[idx:]
		name = name[:idx]
	}

	parts := strings.Split(name, "-")
	if len(parts) < 4 {
		return Record{}, false
	}

	rec := Record{Phone: parts[0], Ext: ext}

	rest := parts[1:]
	switch {
	case len(rest) >= 3 && rest[0] == "two" && rest[1] == "step":
		rec.Step = models.StepTwoStep
		rest = rest[2:]
	case rest[0] == string(models.StepSingle):
		rec.Step = models.StepSingle
		rest = rest[1:]
	default:
		return Record{}, false
	}
	if len(rest) < 2 {
		return Record{}, false
	}

	ts, err := strconv.ParseInt(rest[len(rest)-1], 10, 64)
	if err != nil {
		return Record{}, false
	}
	rec.Timestamp = ts
	rec.Title = strings.Join(rest[:len(rest)-1], "-")
	return rec, true
}

package imaging

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// SplitDataURL breaks a base64 data URL into its mime type and raw base64
// payload without decoding.
func SplitDataURL(dataURL string) (mimeType, payload string, err error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return "", "", fmt.Errorf("not a data URL")
	}
	head, rest, found := strings.Cut(dataURL, ",")
	if !found {
		return "", "", fmt.Errorf("malformed data URL: missing payload")
	}
	head = strings.TrimPrefix(head, "data:")
	if !strings.HasSuffix(head, ";base64") {
		return "", "", fmt.Errorf("malformed data URL: not base64 encoded")
	}
	mimeType = strings.TrimSuffix(head, ";base64")
	if mimeType == "" {
		mimeType = "image/png"
	}
	return mimeType, rest, nil
}

// DecodeDataURL returns the mime type and decoded bytes of a data URL.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	mimeType, payload, err := SplitDataURL(dataURL)
	if err != nil {
		return "", nil, err
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode data URL payload: %w", err)
	}
	return mimeType, data, nil
}

// EncodeDataURL builds a base64 data URL from mime type and bytes.
func EncodeDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ExtensionForMime maps an image mime type to a file extension.
func ExtensionForMime(mimeType string) string {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}

// MimeForExtension is the inverse mapping used when serving stored files.
func MimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

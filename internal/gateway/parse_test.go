package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContent_HTTPImage(t *testing.T) {
	body := "Here you go!\n![image](https://cdn.example.com/out/abc123.png)\nEnjoy."

	content := ParseContent(body)

	assert.Equal(t, ImageHTTP, content.Kind)
	assert.Equal(t, "https://cdn.example.com/out/abc123.png", content.ImageURL)
	assert.Equal(t, "Here you go!\n\nEnjoy.", content.Text)
}

func TestParseContent_InlineImage(t *testing.T) {
	body := "![image](data:image/jpeg;base64,aGVsbG8=)"

	content := ParseContent(body)

	assert.Equal(t, ImageInline, content.Kind)
	assert.Equal(t, "data:image/png;base64,aGVsbG8=", content.ImageURL)
	assert.Empty(t, content.Text)
}

func TestParseContent_TextOnly(t *testing.T) {
	body := "I cannot edit that image."

	content := ParseContent(body)

	assert.Equal(t, TextOnly, content.Kind)
	assert.Empty(t, content.ImageURL)
	assert.Equal(t, body, content.Text)
}

func TestParseContent_URLTakesPrecedence(t *testing.T) {
	body := "![image](data:image/png;base64,aGVsbG8=) and ![image](https://cdn.example.com/a.png)"

	content := ParseContent(body)

	assert.Equal(t, ImageHTTP, content.Kind)
	assert.Equal(t, "https://cdn.example.com/a.png", content.ImageURL)
}

package senders

import (
	"testing"
	"time"

	"github.com/mattsayar/postnotify/lib/models"
	"github.com/stretchr/testify/assert"
)

func examplePost(previewImage string) *models.Post {
	return &models.Post{
		ID:           "p1",
		Title:        "A fresh take",
		Link:         "https://example.com/a-fresh-take",
		PublishedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		PreviewImage: previewImage,
	}
}

func TestSubjectNamesThePost(t *testing.T) {
	email := &NewPostEmail{Post: examplePost("")}
	assert.Equal(t, "New post: A fresh take", email.Subject())
}

func TestBodyLinksPostAndUnsubscribe(t *testing.T) {
	email := &NewPostEmail{
		Post:           examplePost(""),
		UnsubscribeURL: "https://example.com/unsubscribe/?token=abc123",
	}

	body := email.Body()
	assert.Contains(t, body, `href="https://example.com/a-fresh-take"`)
	assert.Contains(t, body, "A fresh take")
	assert.Contains(t, body, `href="https://example.com/unsubscribe/?token=abc123"`)
	assert.NotContains(t, body, "<img")
}

func TestBodyIncludesPreviewImageWhenPresent(t *testing.T) {
	email := &NewPostEmail{Post: examplePost("https://example.com/cover.png")}

	body := email.Body()
	assert.Contains(t, body, `<img src="https://example.com/cover.png"`)
}

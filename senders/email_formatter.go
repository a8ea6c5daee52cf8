package senders

import (
	"fmt"

	"github.com/mattsayar/postnotify/lib/models"
)

// NewPostEmail renders the notification for one recipient. UnsubscribeURL
// carries that recipient's own token and must never be shared.
type NewPostEmail struct {
	Post           *models.Post
	UnsubscribeURL string
}

func (ef *NewPostEmail) Subject() string {
	return fmt.Sprintf("New post: %s", ef.Post.Title)
}

func (ef *NewPostEmail) Body() string {
	image := ""
	if ef.Post.PreviewImage != "" {
		image = fmt.Sprintf(`<p><img src="%s" alt="%s" style="max-width:100%%"></p>`, ef.Post.PreviewImage, ef.Post.Title)
	}

	return fmt.Sprintf(
		`
			<h3><a href="%s">%s</a></h3>
			%s
			<p>A new post just went up. <a href="%s">Read it here.</a></p>
			<hr>
			<p><a href="%s">Unsubscribe</a></p>
		`,
		ef.Post.Link, ef.Post.Title,
		image,
		ef.Post.Link,
		ef.UnsubscribeURL,
	)
}

package feed

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// previewImage tries format-specific heuristics in order: a structured media
// attribute, the feed's own image element, then opengraph/twitter meta tags
// embedded in the item's description HTML. An empty result is not an error.
func previewImage(item *gofeed.Item) string {
	if url := mediaContentURL(item); url != "" {
		return url
	}
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	return metaImageURL(item.Description)
}

func mediaContentURL(item *gofeed.Item) string {
	media, ok := item.Extensions["media"]
	if !ok {
		return ""
	}
	for _, content := range media["content"] {
		if url := content.Attrs["url"]; url != "" {
			return url
		}
	}
	return ""
}

func metaImageURL(description string) string {
	if !strings.Contains(description, "og:image") && !strings.Contains(description, "twitter:image") {
		return ""
	}

	doc, err := htmlquery.Parse(strings.NewReader(description))
	if err != nil {
		return ""
	}
	if url := metaContent(doc, "//meta[@property = 'og:image']"); url != "" {
		return url
	}
	return metaContent(doc, "//meta[@name = 'twitter:image']")
}

func metaContent(n *html.Node, xpath string) string {
	elem := htmlquery.FindOne(n, xpath)
	if elem == nil {
		return ""
	}
	for _, attr := range elem.Attr {
		if attr.Key == "content" {
			return attr.Val
		}
	}
	return ""
}

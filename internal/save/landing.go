// ABOUTME: Resolves an HTML landing page to the image it presents
// ABOUTME: Prefers og:image / twitter:image meta tags, then the first <img src>

package save

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// ErrNoLandingImage is returned when a page names no image.
var ErrNoLandingImage = errors.New("page contains no image")

// LandingImage returns the absolute URL of the image a page presents,
// resolved against pageURL.
func LandingImage(pageURL string, page []byte) (string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parsing page URL: %w", err)
	}
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	var meta, img string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				key := strings.ToLower(getAttr(n, "property"))
				if key == "" {
					key = strings.ToLower(getAttr(n, "name"))
				}
				if meta == "" && (key == "og:image" || key == "og:image:url" || key == "twitter:image") {
					meta = strings.TrimSpace(getAttr(n, "content"))
				}
			case "img":
				if img == "" {
					img = strings.TrimSpace(getAttr(n, "src"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	target := meta
	if target == "" {
		target = img
	}
	if target == "" {
		return "", fmt.Errorf("%s: %w", pageURL, ErrNoLandingImage)
	}
	if strings.HasPrefix(target, "data:") {
		return target, nil
	}
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing image URL %q: %w", target, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

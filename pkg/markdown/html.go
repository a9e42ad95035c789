package markdown

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// htmlSrcPattern locates src attribute spans of <img> tags so the rewrite
// can splice in the local path at the exact source offset.
var htmlSrcPattern = regexp.MustCompile(`(?i)<img[^>]*?\ssrc\s*=\s*["'](https?://[^"']+)["']`)

// ExtractHTMLImages returns remote image references held in raw HTML
// <img> tags embedded in the document. goquery parses the document to
// decide which src values are real img attributes; the offsets come from
// matching those confirmed URLs back against the source text. goquery
// reports entity-decoded attribute values, so the raw captures are
// unescaped before the comparison.
func ExtractHTMLImages(content string) ([]Image, error) {
	if !strings.Contains(strings.ToLower(content), "<img") {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, err
	}

	srcs := make(map[string]bool)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok {
			return
		}
		if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
			srcs[src] = true
		}
	})
	if len(srcs) == 0 {
		return nil, nil
	}

	var images []Image
	for _, m := range htmlSrcPattern.FindAllStringSubmatchIndex(content, -1) {
		url := html.UnescapeString(content[m[2]:m[3]])
		if !srcs[url] {
			continue
		}
		images = append(images, Image{
			URL:     url,
			Start:   m[2],
			End:     m[3],
			urlOnly: true,
		})
	}
	return images, nil
}

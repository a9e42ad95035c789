// Package markdown finds remote image references in markdown documents
// and rewrites them in place using the extraction offsets.
package markdown

import (
	"fmt"
	"regexp"
	"sort"
)

// imagePattern matches ![alt](url) where url starts with an HTTP scheme.
// Alt text cannot contain ']' which matches the syntax the tool rewrites.
var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\((https?://[^)\s]+)\)`)

// Image is one remote image reference found in a document.
// Start/End are byte offsets of the span that gets replaced:
// the whole ![alt](url) markup for markdown syntax, just the URL
// for HTML <img> tags.
type Image struct {
	Alt   string
	URL   string
	Start int
	End   int

	// urlOnly marks references where only the URL span is replaced.
	urlOnly bool
}

// Replacement returns the text that substitutes the image's span
// once the remote URL has been resolved to a local relative path.
func (img Image) Replacement(localPath string) Replacement {
	text := localPath
	if !img.urlOnly {
		text = fmt.Sprintf("![%s](%s)", img.Alt, localPath)
	}
	return Replacement{Start: img.Start, End: img.End, Text: text}
}

// ExtractImages returns all remote markdown image references in content,
// in document order. Every occurrence is reported separately, so a URL
// referenced twice yields two entries.
func ExtractImages(content string) []Image {
	matches := imagePattern.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return nil
	}

	images := make([]Image, 0, len(matches))
	for _, m := range matches {
		images = append(images, Image{
			Alt:   content[m[2]:m[3]],
			URL:   content[m[4]:m[5]],
			Start: m[0],
			End:   m[1],
		})
	}
	return images
}

// Replacement substitutes content[Start:End] with Text.
type Replacement struct {
	Start int
	End   int
	Text  string
}

// Apply rewrites content by splicing in the given replacements.
// Replacements must not overlap; they are applied by source offset so the
// surrounding text is never re-searched.
func Apply(content string, reps []Replacement) string {
	if len(reps) == 0 {
		return content
	}

	sorted := make([]Replacement, len(reps))
	copy(sorted, reps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var out []byte
	last := 0
	for _, r := range sorted {
		if r.Start < last {
			continue // overlapping span, keep the earlier rewrite
		}
		out = append(out, content[last:r.Start]...)
		out = append(out, r.Text...)
		last = r.End
	}
	out = append(out, content[last:]...)
	return string(out)
}

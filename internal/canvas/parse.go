package canvas

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"slackscribe/internal/audiofmt"
)

// DefaultTextLimit caps Document.TextContent in runes.
const DefaultTextLimit = 1000

// AssetRef is a candidate audio reference. Canvas assets carry a URL; direct
// uploads may carry only a FileID that is resolved to a URL later.
type AssetRef struct {
	URL              string
	FileID           string
	ExtensionHint    string
	OriginBlockIndex int
}

// Document is a parsed canvas. It is read-only once built.
type Document struct {
	ID          string
	TextContent string
	Truncated   bool
	Blocks      []Block
}

// Parse walks blocks in document order and returns the canvas document plus
// the audio references it embeds, ordered by block then by element. File
// blocks are accepted when their download URL has an audio extension;
// rich-text blocks contribute each audio link. Other blocks only contribute
// text. limit <= 0 means DefaultTextLimit.
func Parse(id string, blocks []Block, limit int) (Document, []AssetRef) {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	var refs []AssetRef
	var text strings.Builder

	for i, block := range blocks {
		switch block.Kind {
		case BlockFile:
			if ext, ok := audiofmt.ExtensionFromURL(block.FileURL); ok {
				refs = append(refs, AssetRef{URL: block.FileURL, ExtensionHint: ext, OriginBlockIndex: i})
			}
		case BlockRichText:
			for _, link := range block.Links {
				if ext, ok := audiofmt.ExtensionFromURL(link.URL); ok {
					refs = append(refs, AssetRef{URL: link.URL, ExtensionHint: ext, OriginBlockIndex: i})
				}
			}
		case BlockOther:
		}
		appendText(&text, block.Text)
	}

	content, truncated := Truncate(norm.NFC.String(text.String()), limit)
	return Document{
		ID:          id,
		TextContent: content,
		Truncated:   truncated,
		Blocks:      blocks,
	}, refs
}

// TextDocument builds a block-less document from recovered plain text.
func TextDocument(id, text string, limit int) Document {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	content, truncated := Truncate(norm.NFC.String(strings.TrimSpace(text)), limit)
	return Document{ID: id, TextContent: content, Truncated: truncated}
}

// Truncate returns at most limit runes of s.
func Truncate(s string, limit int) (string, bool) {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s, false
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i], true
		}
		count++
	}
	return s, false
}

func appendText(b *strings.Builder, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(text)
}

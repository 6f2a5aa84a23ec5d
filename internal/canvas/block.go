package canvas

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// BlockKind is the closed set of block variants the parser understands.
type BlockKind int

const (
	BlockOther BlockKind = iota
	BlockFile
	BlockRichText
)

func (k BlockKind) String() string {
	switch k {
	case BlockFile:
		return "file"
	case BlockRichText:
		return "rich_text"
	default:
		return "other"
	}
}

// Link is an inline link inside a rich-text block.
type Link struct {
	URL  string
	Text string
}

// Block is one node of a canvas. Which fields are meaningful depends on Kind:
// File blocks carry FileURL and FileName, RichText blocks carry Links, and
// every variant may carry plain Text.
type Block struct {
	Kind     BlockKind
	Type     string
	FileURL  string
	FileName string
	Links    []Link
	Text     string
}

type rawBlock struct {
	Type     string          `json:"type"`
	File     *rawFile        `json:"file"`
	Elements []rawElement    `json:"elements"`
	Text     json.RawMessage `json:"text"`
}

type rawFile struct {
	Name               string `json:"name"`
	Title              string `json:"title"`
	URLPrivate         string `json:"url_private"`
	URLPrivateDownload string `json:"url_private_download"`
}

type rawElement struct {
	Type     string       `json:"type"`
	URL      string       `json:"url"`
	Text     string       `json:"text"`
	Elements []rawElement `json:"elements"`
}

type rawDocument struct {
	Blocks []rawBlock `json:"blocks"`
	Canvas *struct {
		Blocks []rawBlock `json:"blocks"`
	} `json:"canvas"`
}

// DecodeBlocks decodes a canvas block tree. It accepts a bare array of
// blocks, an object with "blocks", or an object with "canvas.blocks".
func DecodeBlocks(raw []byte) ([]Block, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("decode canvas blocks: empty document")
	}
	var blocks []rawBlock
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &blocks); err != nil {
			return nil, fmt.Errorf("decode canvas blocks: %w", err)
		}
	} else {
		var doc rawDocument
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("decode canvas blocks: %w", err)
		}
		blocks = doc.Blocks
		if len(blocks) == 0 && doc.Canvas != nil {
			blocks = doc.Canvas.Blocks
		}
	}

	out := make([]Block, 0, len(blocks))
	for _, rb := range blocks {
		out = append(out, rb.toBlock())
	}
	return out, nil
}

func (rb rawBlock) toBlock() Block {
	block := Block{Type: rb.Type, Text: blockText(rb.Text)}
	switch strings.ToLower(rb.Type) {
	case "file":
		block.Kind = BlockFile
		if rb.File != nil {
			block.FileURL = firstNonEmpty(rb.File.URLPrivateDownload, rb.File.URLPrivate)
			block.FileName = firstNonEmpty(rb.File.Name, rb.File.Title)
		}
	case "rich_text":
		block.Kind = BlockRichText
		var text strings.Builder
		collectElements(rb.Elements, &block.Links, &text)
		block.Text = joinText(block.Text, text.String())
	default:
		block.Kind = BlockOther
		var text strings.Builder
		collectElements(rb.Elements, nil, &text)
		block.Text = joinText(block.Text, text.String())
	}
	return block
}

// collectElements walks nested rich-text elements in document order. links
// may be nil when the caller only wants text.
func collectElements(elements []rawElement, links *[]Link, text *strings.Builder) {
	for _, el := range elements {
		switch strings.ToLower(el.Type) {
		case "link":
			if links != nil && strings.TrimSpace(el.URL) != "" {
				*links = append(*links, Link{URL: strings.TrimSpace(el.URL), Text: el.Text})
			}
			text.WriteString(firstNonEmpty(el.Text, el.URL))
		case "text":
			text.WriteString(el.Text)
		default:
			if el.Text != "" {
				text.WriteString(el.Text)
			}
		}
		if len(el.Elements) > 0 {
			collectElements(el.Elements, links, text)
			if isSectionType(el.Type) {
				text.WriteByte('\n')
			}
		}
	}
}

func isSectionType(t string) bool {
	switch t {
	case "rich_text_section", "rich_text_list", "rich_text_quote", "rich_text_preformatted":
		return true
	default:
		return false
	}
}

// blockText reads a "text" field that may be a plain string or an object with
// its own "text" member.
func blockText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Text
	}
	return ""
}

func joinText(a, b string) string {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n" + b
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

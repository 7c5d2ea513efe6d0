package feed

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/jsn/pkg/domain"
)

// ErrUnsafeDocument is returned for documents declaring entities in a DTD
var ErrUnsafeDocument = errors.New("document declares DTD entities")

const dcNamespace = "http://purl.org/dc/elements/1.1/"

// Parser decodes and parses RSS documents
type Parser struct {
	encoding string
}

// NewParser creates a new feed parser for bodies in the given encoding
func NewParser(encoding string) *Parser {
	return &Parser{encoding: encoding}
}

// Parse decodes the raw body, rejects unsafe documents and extracts all items in document order.
// gofeed validates the document and provides feed level fields, items are collected at any depth
func (p *Parser) Parse(body []byte) (*domain.ParsedFeed, error) {
	text, err := Decode(body, p.encoding)
	if err != nil {
		return nil, fmt.Errorf("decode feed: %w", err)
	}
	doc := StripEncodingDecl(text)

	if err := checkDocument(doc); err != nil {
		return nil, err
	}

	feed, err := gofeed.NewParser().ParseString(doc)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items, err := extractItems(doc)
	if err != nil {
		return nil, fmt.Errorf("extract items: %w", err)
	}

	return &domain.ParsedFeed{Title: feed.Title, Link: feed.Link, Items: items}, nil
}

// itemFrame tracks an open item element during extraction
type itemFrame struct {
	idx   int    // position in the result
	depth int    // element depth of the item itself
	space string // namespace of the item, its own fields share it
	seen  map[string]bool
}

// extractItems collects every item element at any depth in document order.
// Title, link and description come from direct children in the item's namespace,
// the date from the first direct dc:date child. Values are trimmed.
func extractItems(doc string) ([]domain.ParsedItem, error) {
	dec := newDecoder(doc)
	items := []domain.ParsedItem{}
	var stack []*itemFrame
	depth := 0

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return items, nil
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name.Local == "item" {
				items = append(items, domain.ParsedItem{})
				stack = append(stack, &itemFrame{idx: len(items) - 1, depth: depth, space: t.Name.Space, seen: map[string]bool{}})
				continue
			}
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			field := itemField(t.Name, top.space)
			if depth != top.depth+1 || field == "" || top.seen[field] {
				continue
			}
			text, err := elementText(dec)
			if err != nil {
				return nil, err
			}
			depth-- // end element consumed by elementText
			top.seen[field] = true
			it := &items[top.idx]
			switch field {
			case "title":
				it.Title = text
			case "link":
				it.Link = text
			case "description":
				it.Description = text
			case "date":
				it.DCDate = text
			}
		case xml.EndElement:
			if len(stack) > 0 && stack[len(stack)-1].depth == depth {
				stack = stack[:len(stack)-1]
			}
			depth--
		}
	}
}

// itemField maps a child element name to the item field it fills, empty if none
func itemField(name xml.Name, itemSpace string) string {
	if name.Local == "date" && (name.Space == dcNamespace || name.Space == "dc") {
		return "date"
	}
	if name.Space != itemSpace {
		return ""
	}
	switch name.Local {
	case "title", "link", "description":
		return name.Local
	}
	return ""
}

// elementText reads up to the end of the current element and returns its trimmed character data
func elementText(dec *xml.Decoder) (string, error) {
	var sb strings.Builder
	level := 0
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			level++
		case xml.EndElement:
			if level == 0 {
				return strings.TrimSpace(sb.String()), nil
			}
			level--
		}
	}
}

// newDecoder makes a lenient decoder which never expands DTD entities
func newDecoder(doc string) *xml.Decoder {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	// the text is decoded already, any remaining declaration is ignored
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) { return input, nil }
	return dec
}

// checkDocument scans the document prolog and fails on any entity declaration.
// Internal entities allow expansion bombs, external ones allow reading local files or probing the network.
func checkDocument(doc string) error {
	dec := newDecoder(doc)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("scan document: %w", err)
		}

		switch t := tok.(type) {
		case xml.Directive:
			d := strings.ToUpper(string(t))
			if strings.HasPrefix(strings.TrimSpace(d), "DOCTYPE") && strings.Contains(d, "<!ENTITY") {
				return ErrUnsafeDocument
			}
		case xml.StartElement:
			// DTD may only appear before the root element
			return nil
		}
	}
}

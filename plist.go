// Copyright (c) 2025, Gareth Watts
// All rights reserved.

package macapps

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html/charset"
)

// ErrNoDocument is returned when the input holds no root element at all.
var ErrNoDocument = errors.New("no plist document found")

const (
	itemsKey        = "_items"
	dictPlaceholder = "<dict>...</dict>"
)

// Node is one element of a parsed plist document.
type Node interface {
	Tag() string
	// Text returns the character data of the element and all of its
	// descendants, untrimmed.
	Text() string
	Children() []Node
	NextElementSibling() Node
}

type element struct {
	tag     string
	parent  *element
	content []any // string or *element, in document order
	elems   []*element
	index   int // position in parent.elems
}

func (e *element) Tag() string { return e.tag }

func (e *element) Text() string {
	var sb strings.Builder
	e.writeText(&sb)
	return sb.String()
}

func (e *element) writeText(sb *strings.Builder) {
	for _, c := range e.content {
		switch c := c.(type) {
		case string:
			sb.WriteString(c)
		case *element:
			c.writeText(sb)
		}
	}
}

func (e *element) Children() []Node {
	nodes := make([]Node, len(e.elems))
	for i, c := range e.elems {
		nodes[i] = c
	}
	return nodes
}

func (e *element) NextElementSibling() Node {
	if e.parent == nil || e.index+1 >= len(e.parent.elems) {
		return nil
	}
	return e.parent.elems[e.index+1]
}

// Decoder turns plist XML into Nodes and Dicts.  It holds no per-call state
// and may be shared between goroutines.
type Decoder struct {
	lenient bool
	log     *slog.Logger
}

// NewDecoder returns a Decoder.  In lenient mode markup errors are
// tolerated for as long as a root element has been seen; whatever was
// parsed up to that point is kept.
func NewDecoder(lenient bool, log *slog.Logger) *Decoder {
	return &Decoder{lenient: lenient, log: orDiscard(log)}
}

// Parse reads a single XML document and returns its root element.
func (d *Decoder) Parse(r io.Reader) (Node, error) {
	xd := xml.NewDecoder(r)
	xd.CharsetReader = charset.NewReaderLabel
	if d.lenient {
		xd.Strict = false
		xd.AutoClose = xml.HTMLAutoClose
		xd.Entity = xml.HTMLEntity
	}

	var root, cur *element
tokens:
	for {
		t, err := xd.Token()
		if err != nil {
			if err == io.EOF {
				break tokens
			}
			if d.lenient && root != nil {
				d.log.Log(context.Background(), LevelTrace, "ignoring malformed plist markup", "err", err)
				break tokens
			}
			return nil, fmt.Errorf("parse plist: %w", err)
		}

		switch t1 := t.(type) {
		case xml.StartElement:
			if cur == nil && root != nil {
				if !d.lenient {
					return nil, fmt.Errorf("parse plist: unexpected element <%s> after root", t1.Name.Local)
				}
				if err := xd.Skip(); err != nil {
					break tokens
				}
				continue
			}
			el := &element{tag: t1.Name.Local, parent: cur}
			if cur == nil {
				root = el
			} else {
				el.index = len(cur.elems)
				cur.elems = append(cur.elems, el)
				cur.content = append(cur.content, el)
			}
			cur = el
		case xml.EndElement:
			if cur != nil {
				cur = cur.parent
			}
		case xml.CharData:
			if cur != nil {
				cur.content = append(cur.content, string(t1))
			}
		}
	}
	if root == nil {
		return nil, ErrNoDocument
	}
	return root, nil
}

// DecodeItems parses text and decodes every dict found below the array
// that follows the _items key.  A document without such an array yields
// no dicts and no error.
func (d *Decoder) DecodeItems(text string) ([]Dict, error) {
	root, err := d.Parse(strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	items := findItemsArray(root)
	if items == nil {
		return []Dict{}, nil
	}
	dicts := []Dict{}
	forEachDescendant(items, func(n Node) {
		if n.Tag() == "dict" {
			dicts = append(dicts, d.DecodeDict(n))
		}
	})
	return dicts, nil
}

// findItemsArray returns the first array, in document order, that follows
// a sibling <key>_items</key> with no other array in between.
func findItemsArray(n Node) Node {
	afterKey := false
	for _, c := range n.Children() {
		switch c.Tag() {
		case "key":
			if c.Text() == itemsKey {
				afterKey = true
			}
		case "array":
			if afterKey {
				return c
			}
		}
		if found := findItemsArray(c); found != nil {
			return found
		}
	}
	return nil
}

func forEachDescendant(n Node, fn func(Node)) {
	for _, c := range n.Children() {
		fn(c)
		forEachDescendant(c, fn)
	}
}

// DecodeDict pairs each key child of n with the element that follows it.
// A trailing key with no value is dropped; a repeated key keeps the last
// value.
func (d *Decoder) DecodeDict(n Node) Dict {
	var dict Dict
	for _, c := range n.Children() {
		if c.Tag() != "key" {
			continue
		}
		v := c.NextElementSibling()
		if v == nil {
			continue
		}
		dict.Set(c.Text(), d.DecodeValue(v))
	}
	return dict
}

// DecodeValue flattens a value element into a string.  Arrays decode to
// their first element only and nested dicts are not expanded.
func (d *Decoder) DecodeValue(n Node) string {
	switch n.Tag() {
	case "true":
		return "true"
	case "false":
		return "false"
	case "dict":
		d.log.Log(context.Background(), LevelTrace, "nested dict values are not supported")
		return dictPlaceholder
	case "array":
		// only the first element is ever consumed (signed_by)
		if children := n.Children(); len(children) > 0 {
			return d.DecodeValue(children[0])
		}
		return ""
	default:
		return n.Text()
	}
}

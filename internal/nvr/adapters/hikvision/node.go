package hikvision

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind tags the shape of a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

// Node is a parsed ISAPI payload. XML and JSON bodies both decode into this tree,
// with namespaces and attributes dropped and key order preserved.
type Node struct {
	Kind   Kind
	Value  string
	Items  []*Node
	keys   []string
	fields map[string]*Node
}

func newMap() *Node {
	return &Node{Kind: KindMap, fields: make(map[string]*Node)}
}

// Format of a payload body.
type Format int

const (
	FormatXML Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "xml"
}

// DetectFormat uses the declared content type, falling back to the first
// non-blank byte of the body.
func DetectFormat(contentType string, body []byte) Format {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "xml"):
		return FormatXML
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatXML
}

// DefaultRepeatable lists the ISAPI elements that are always list-valued,
// even when a device returns a single entry.
var DefaultRepeatable = []string{
	"PTZPreset",
	"PTZPatrol",
	"TwoWayAudioChannel",
	"hdd",
	"nas",
	"HttpHostNotification",
	"searchMatchItem",
	"day",
	"StreamingChannel",
	"InputProxyChannel",
	"VideoInputChannel",
	"InputProxyChannelStatus",
	"EventTrigger",
	"EventTriggerNotification",
	"DetectionRegionEntry",
	"AdminAccessProtocol",
	"IOInputPort",
	"IOProxyInputPort",
	"trackID",
}

// Normalizer turns raw bodies into Nodes. It is immutable after construction
// and shared by every client of a process.
type Normalizer struct {
	repeatable map[string]struct{}
}

func NewNormalizer(repeatable ...string) *Normalizer {
	z := &Normalizer{repeatable: make(map[string]struct{}, len(repeatable))}
	for _, name := range repeatable {
		z.repeatable[name] = struct{}{}
	}
	return z
}

// DefaultNormalizer returns a Normalizer over DefaultRepeatable.
func DefaultNormalizer() *Normalizer {
	return NewNormalizer(DefaultRepeatable...)
}

func (z *Normalizer) isRepeatable(name string) bool {
	if z == nil {
		return false
	}
	_, ok := z.repeatable[name]
	return ok
}

// Parse decodes body in the given format.
func (z *Normalizer) Parse(body []byte, format Format) (*Node, error) {
	if format == FormatJSON {
		return z.ParseJSON(body)
	}
	return z.ParseXML(body)
}

// ParseXML returns a map node holding the document root under its local name.
func (z *Normalizer) ParseXML(body []byte) (*Node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Err: errors.New("empty body")}
	}

	type frame struct {
		name string
		node *Node
		text strings.Builder
	}

	dec := xml.NewDecoder(bytes.NewReader(body))
	var stack []*frame
	var root *Node

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, &frame{name: t.Name.Local, node: newMap()})
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, &ParseError{Err: fmt.Errorf("unexpected end element %s", t.Name.Local)}
			}
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			n := f.node
			if len(n.keys) == 0 {
				n = &Node{Kind: KindScalar, Value: strings.TrimSpace(f.text.String())}
			}
			if len(stack) == 0 {
				if root == nil {
					root = newMap()
					z.attach(root, f.name, n)
				}
				continue
			}
			z.attach(stack[len(stack)-1].node, f.name, n)
		}
	}

	if len(stack) > 0 {
		return nil, &ParseError{Err: fmt.Errorf("unclosed element %s", stack[len(stack)-1].name)}
	}
	if root == nil {
		return nil, &ParseError{Err: errors.New("no root element")}
	}
	return root, nil
}

// ParseJSON decodes a JSON document. Numbers keep their textual form.
func (z *Normalizer) ParseJSON(body []byte) (*Node, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, &ParseError{Err: errors.New("empty body")}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	n, err := z.decodeJSON(dec)
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return n, nil
}

func (z *Normalizer) decodeJSON(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			n := newMap()
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", kt)
				}
				child, err := z.decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				z.attach(n, key, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		case '[':
			n := &Node{Kind: KindList}
			for dec.More() {
				child, err := z.decodeJSON(dec)
				if err != nil {
					return nil, err
				}
				n.Items = append(n.Items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return n, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return &Node{Kind: KindScalar, Value: v}, nil
	case json.Number:
		return &Node{Kind: KindScalar, Value: v.String()}, nil
	case bool:
		return &Node{Kind: KindScalar, Value: strconv.FormatBool(v)}, nil
	case nil:
		return &Node{Kind: KindScalar}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// attach adds child under key. A repeated key, or a key in the repeatable set,
// becomes a list.
func (z *Normalizer) attach(parent *Node, key string, child *Node) {
	if existing, ok := parent.fields[key]; ok {
		if existing.Kind == KindList {
			existing.Items = append(existing.Items, child)
			return
		}
		parent.fields[key] = &Node{Kind: KindList, Items: []*Node{existing, child}}
		return
	}
	if child.Kind != KindList && z.isRepeatable(key) {
		child = &Node{Kind: KindList, Items: []*Node{child}}
	}
	parent.keys = append(parent.keys, key)
	parent.fields[key] = child
}

// Get walks a key path. A list met mid-path is entered through its first item.
func (n *Node) Get(path ...string) *Node {
	cur := n
	for _, key := range path {
		if cur == nil {
			return nil
		}
		if cur.Kind == KindList {
			if len(cur.Items) == 0 {
				return nil
			}
			cur = cur.Items[0]
		}
		if cur.Kind != KindMap {
			return nil
		}
		cur = cur.fields[key]
	}
	return cur
}

// First returns the first direct child present among names.
func (n *Node) First(names ...string) *Node {
	for _, name := range names {
		if c := n.Get(name); c != nil {
			return c
		}
	}
	return nil
}

// Find returns the first node named name anywhere below n, depth first.
func (n *Node) Find(name string) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindMap:
		if c, ok := n.fields[name]; ok {
			return c
		}
		for _, k := range n.keys {
			if found := n.fields[k].Find(name); found != nil {
				return found
			}
		}
	case KindList:
		for _, item := range n.Items {
			if found := item.Find(name); found != nil {
				return found
			}
		}
	}
	return nil
}

// List always yields a slice: nil for a missing node, one element for a bare node.
func (n *Node) List() []*Node {
	if n == nil {
		return nil
	}
	if n.Kind == KindList {
		return n.Items
	}
	return []*Node{n}
}

// Keys returns map keys in document order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMap {
		return nil
	}
	return n.keys
}

func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case KindScalar:
		return n.Value
	case KindList:
		if len(n.Items) > 0 {
			return n.Items[0].Text()
		}
	}
	return ""
}

func (n *Node) Int() int {
	s := strings.TrimSpace(n.Text())
	if s == "" {
		return 0
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func (n *Node) Int64() int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(n.Text()), 10, 64)
	if err != nil {
		return int64(n.Int())
	}
	return v
}

func (n *Node) Bool() bool {
	return strings.EqualFold(strings.TrimSpace(n.Text()), "true")
}

// Interface converts the tree to plain maps, slices and strings for JSON output.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindList:
		out := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			out = append(out, item.Interface())
		}
		return out
	case KindMap:
		out := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			out[k] = n.fields[k].Interface()
		}
		return out
	}
	return n.Value
}

package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ZaguanLabs/transctl"
)

// JSONExtractor extracts every string value of a JSON document whose
// top-level value is an object.
type JSONExtractor struct {
	indent string
}

var _ transctl.Extractor = (*JSONExtractor)(nil)

// NewJSONExtractor creates a JSON extractor writing two-space indented output.
func NewJSONExtractor() *JSONExtractor {
	return &JSONExtractor{indent: "  "}
}

// ContentType returns transctl.ResourceJSON.
func (e *JSONExtractor) ContentType() transctl.ResourceType {
	return transctl.ResourceJSON
}

// Extract parses content, keeping key order and number literals, and
// collects every string leaf with its key/index path from the root.
func (e *JSONExtractor) Extract(content string) (transctl.Document, error) {
	root, err := decodeJSON(content)
	if err != nil {
		return nil, &transctl.ProcessorError{
			Message:     "failed to parse JSON",
			Cause:       err,
			ContentType: transctl.ResourceJSON,
		}
	}
	if _, ok := root.(*jsonObject); !ok {
		return nil, &transctl.ProcessorError{
			Message:     "expected a JSON object at top level",
			ContentType: transctl.ResourceJSON,
		}
	}

	doc := &jsonDocument{root: root, indent: e.indent}
	walkStrings(root, nil, func(path []any, s string) {
		doc.segments = append(doc.segments, transctl.Segment{
			Locator: transctl.Locator{Index: len(doc.segments), Path: path},
			Text:    s,
		})
	})
	return doc, nil
}

type jsonDocument struct {
	root     any
	indent   string
	segments []transctl.Segment
}

func (d *jsonDocument) Segments() []transctl.Segment {
	return d.segments
}

// Reinsert writes each translation at its segment's path in a copy of the
// tree and encodes the copy.
func (d *jsonDocument) Reinsert(translations []string) (string, error) {
	if err := checkCount(d, translations, transctl.ResourceJSON); err != nil {
		return "", err
	}

	root := cloneJSON(d.root)
	for i, seg := range d.segments {
		if err := setAt(root, seg.Locator.Path, translations[i]); err != nil {
			return "", &transctl.ProcessorError{
				Message:     fmt.Sprintf("cannot reinsert at %s", seg.Locator),
				Cause:       err,
				ContentType: transctl.ResourceJSON,
			}
		}
	}

	var buf bytes.Buffer
	if err := encodeJSON(&buf, root, d.indent, 0); err != nil {
		return "", &transctl.ProcessorError{
			Message:     "failed to serialize JSON",
			Cause:       err,
			ContentType: transctl.ResourceJSON,
		}
	}
	buf.WriteByte('\n')
	return buf.String(), nil
}

// jsonObject preserves insertion order of a JSON object. A repeated key
// keeps its first position and its last value.
type jsonObject struct {
	keys   []string
	values map[string]any
}

func newJSONObject() *jsonObject {
	return &jsonObject{values: make(map[string]any)}
}

func (o *jsonObject) set(key string, v any) {
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// decodeJSON parses one JSON value into *jsonObject, []any, string,
// json.Number, bool or nil.
func decodeJSON(content string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := t.(json.Delim)
	if !ok {
		return t, nil
	}

	switch delim {
	case '{':
		obj := newJSONObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("expected string key, got %T", kt)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			obj.set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil

	case '[':
		arr := []any{}
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	}

	return nil, fmt.Errorf("unexpected delimiter %q", delim)
}

// walkStrings calls fn for every string leaf in document order.
func walkStrings(v any, path []any, fn func(path []any, s string)) {
	switch node := v.(type) {
	case *jsonObject:
		for _, k := range node.keys {
			walkStrings(node.values[k], appendPath(path, k), fn)
		}
	case []any:
		for i, item := range node {
			walkStrings(item, appendPath(path, i), fn)
		}
	case string:
		fn(path, node)
	}
}

// appendPath returns path+part without sharing the backing array.
func appendPath(path []any, part any) []any {
	out := make([]any, len(path)+1)
	copy(out, path)
	out[len(path)] = part
	return out
}

func cloneJSON(v any) any {
	switch node := v.(type) {
	case *jsonObject:
		c := &jsonObject{
			keys:   append([]string(nil), node.keys...),
			values: make(map[string]any, len(node.values)),
		}
		for k, child := range node.values {
			c.values[k] = cloneJSON(child)
		}
		return c
	case []any:
		c := make([]any, len(node))
		for i, child := range node {
			c[i] = cloneJSON(child)
		}
		return c
	default:
		return v
	}
}

func setAt(root any, path []any, value string) error {
	if len(path) == 0 {
		return errors.New("empty path")
	}

	cur := root
	for i, part := range path {
		last := i == len(path)-1
		switch node := cur.(type) {
		case *jsonObject:
			key, ok := part.(string)
			if !ok {
				return fmt.Errorf("object key must be a string, got %T", part)
			}
			if _, exists := node.values[key]; !exists {
				return fmt.Errorf("missing key %q", key)
			}
			if last {
				node.values[key] = value
				return nil
			}
			cur = node.values[key]
		case []any:
			idx, ok := part.(int)
			if !ok || idx < 0 || idx >= len(node) {
				return fmt.Errorf("invalid index %v", part)
			}
			if last {
				node[idx] = value
				return nil
			}
			cur = node[idx]
		default:
			return fmt.Errorf("cannot descend into %T", cur)
		}
	}
	return nil
}

// encodeJSON writes v with one indent per nesting level. Strings are
// written without escaping HTML characters or non-ASCII text.
func encodeJSON(w *bytes.Buffer, v any, indent string, depth int) error {
	switch node := v.(type) {
	case *jsonObject:
		if len(node.keys) == 0 {
			w.WriteString("{}")
			return nil
		}
		w.WriteString("{\n")
		for i, k := range node.keys {
			writeIndent(w, indent, depth+1)
			if err := encodeScalar(w, k); err != nil {
				return err
			}
			w.WriteString(": ")
			if err := encodeJSON(w, node.values[k], indent, depth+1); err != nil {
				return err
			}
			if i < len(node.keys)-1 {
				w.WriteByte(',')
			}
			w.WriteByte('\n')
		}
		writeIndent(w, indent, depth)
		w.WriteByte('}')
	case []any:
		if len(node) == 0 {
			w.WriteString("[]")
			return nil
		}
		w.WriteString("[\n")
		for i, item := range node {
			writeIndent(w, indent, depth+1)
			if err := encodeJSON(w, item, indent, depth+1); err != nil {
				return err
			}
			if i < len(node)-1 {
				w.WriteByte(',')
			}
			w.WriteByte('\n')
		}
		writeIndent(w, indent, depth)
		w.WriteByte(']')
	default:
		return encodeScalar(w, v)
	}
	return nil
}

func encodeScalar(w *bytes.Buffer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return nil
}

func writeIndent(w *bytes.Buffer, indent string, depth int) {
	for i := 0; i < depth; i++ {
		w.WriteString(indent)
	}
}

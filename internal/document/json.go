package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// maxFlattenDepth caps recursion when flattening nested structures, so a
// pathological or cyclic document cannot loop forever.
const maxFlattenDepth = 10

// depthMarker is emitted in place of content below maxFlattenDepth.
const depthMarker = "[max depth exceeded]"

// ErrEmptyDocument indicates a source document with no usable text.
var ErrEmptyDocument = errors.New("document has no usable text")

// titleKeys and urlKeys are candidate metadata fields checked on the
// top-level object, in order of preference.
var (
	titleKeys = []string{"title", "name", "heading"}
	urlKeys   = []string{"url", "link", "href"}
)

// NormalizeJSON converts a structured JSON record into a Document.
//
// Nested key/value structure is flattened into "Key: Value" lines. Keys are
// humanized (separators become spaces, words are title-cased). Objects that
// carry both a "title" and a "content" string collapse to a single
// "<title>: <content>" line. Null and empty leaves are skipped.
func NormalizeJSON(source string, data []byte) (Document, error) {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", source, err)
	}

	var lines []string
	flatten(root, "", 0, &lines)
	if len(lines) == 0 {
		return Document{}, fmt.Errorf("%w: %s", ErrEmptyDocument, source)
	}

	meta := Metadata{
		Source:   source,
		FileType: "json",
	}
	if obj, ok := root.(map[string]any); ok {
		meta.Title = firstString(obj, titleKeys)
		meta.URL = firstString(obj, urlKeys)
	}

	return Document{
		Content:  strings.Join(lines, "\n\n"),
		Metadata: meta,
	}, nil
}

// flatten appends "Key: Value" lines for every scalar leaf under value.
func flatten(value any, key string, depth int, lines *[]string) {
	if depth > maxFlattenDepth {
		*lines = append(*lines, formatLine(key, depthMarker))
		return
	}

	switch v := value.(type) {
	case map[string]any:
		// An object that is exactly a title/content pair reads as a single
		// labeled passage rather than two unrelated lines. Objects carrying
		// any other keys flatten field by field so nothing is dropped.
		if title, content, ok := titleContentPair(v); ok {
			*lines = append(*lines, title+": "+content)
			return
		}
		for _, k := range orderedKeys(v) {
			flatten(v[k], k, depth+1, lines)
		}
	case []any:
		for _, elem := range v {
			flatten(elem, key, depth+1, lines)
		}
	case string:
		if strings.TrimSpace(v) == "" {
			return
		}
		*lines = append(*lines, formatLine(key, v))
	case float64:
		*lines = append(*lines, formatLine(key, strconv.FormatFloat(v, 'f', -1, 64)))
	case bool:
		*lines = append(*lines, formatLine(key, strconv.FormatBool(v)))
	case nil:
		// Null leaves carry no text.
	}
}

// titleContentPair reports whether the object is exactly a {title, content}
// record with nothing else in it.
func titleContentPair(obj map[string]any) (title, content string, ok bool) {
	if len(obj) != 2 {
		return "", "", false
	}
	t, tok := obj["title"].(string)
	c, cok := obj["content"].(string)
	if !tok || !cok || strings.TrimSpace(t) == "" || strings.TrimSpace(c) == "" {
		return "", "", false
	}
	return t, c, true
}

// orderedKeys returns the object's keys with title and description first,
// matching how a reader expects a record to open, then the rest sorted.
func orderedKeys(obj map[string]any) []string {
	preferred := []string{"title", "description"}
	keys := make([]string, 0, len(obj))
	seen := make(map[string]bool, 2)
	for _, k := range preferred {
		if _, ok := obj[k]; ok {
			keys = append(keys, k)
			seen[k] = true
		}
	}
	rest := make([]string, 0, len(obj))
	for k := range obj {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func formatLine(key, value string) string {
	if key == "" {
		return value
	}
	return humanizeKey(key) + ": " + value
}

// humanizeKey turns snake_case or kebab-case keys into title-cased labels.
func humanizeKey(key string) string {
	key = strings.NewReplacer("_", " ", "-", " ").Replace(key)
	return titleCase(key)
}

func firstString(obj map[string]any, candidates []string) string {
	for _, k := range candidates {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

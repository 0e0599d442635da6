package retrieval

import (
	"strings"
	"unicode"

	"govrag/src/core/knowledgebase"
)

const (
	captionBefore  = 50
	captionAfter   = 100
	captionDefault = 150
	ellipsis       = "..."
	emOpen         = "<em>"
	emClose        = "</em>"
)

// Caption returns a snippet of content around the earliest occurrence of any
// term. Without a hit it returns the opening of content.
func Caption(content string, terms []string) string {
	runes := []rune(content)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}

	pos := -1
	for _, term := range terms {
		if i := indexRunes(lower, []rune(term)); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}

	if pos < 0 {
		if len(runes) <= captionDefault {
			return content
		}
		return string(runes[:captionDefault]) + ellipsis
	}

	start := max(0, pos-captionBefore)
	end := min(len(runes), pos+captionAfter)
	out := string(runes[start:end])
	if start > 0 {
		out = ellipsis + out
	}
	if end < len(runes) {
		out += ellipsis
	}
	return out
}

func indexRunes(s, sub []rune) int {
	if len(sub) == 0 {
		return -1
	}
	for i := 0; i+len(sub) <= len(s); i++ {
		match := true
		for j := range sub {
			if s[i+j] != sub[j] {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// Emphasize wraps every case-insensitive occurrence of a term in <em> tags,
// preferring the longest term at each position. ok is false without a hit.
func Emphasize(text string, terms []string) (out string, ok bool) {
	runes := []rune(text)
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	needles := make([][]rune, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			needles = append(needles, []rune(t))
		}
	}

	var b strings.Builder
	for i := 0; i < len(runes); {
		n := 0
		for _, needle := range needles {
			if len(needle) > n && indexRunes(lower[i:min(len(lower), i+len(needle))], needle) == 0 {
				n = len(needle)
			}
		}
		if n == 0 {
			b.WriteRune(runes[i])
			i++
			continue
		}
		b.WriteString(emOpen)
		b.WriteString(string(runes[i : i+n]))
		b.WriteString(emClose)
		i += n
		ok = true
	}
	return b.String(), ok
}

// Highlights marks the query terms in a document's title, summary and a
// content caption, keyed by field. Fields without a hit are left out and
// nil is returned when nothing matched.
func Highlights(doc knowledgebase.Document, terms []string) map[string][]string {
	fields := map[string]string{
		"title":   doc.Title,
		"summary": doc.Summary,
		"content": Caption(doc.Content, terms),
	}
	var out map[string][]string
	for name, text := range fields {
		marked, ok := Emphasize(text, terms)
		if !ok {
			continue
		}
		if out == nil {
			out = map[string][]string{}
		}
		out[name] = []string{marked}
	}
	return out
}

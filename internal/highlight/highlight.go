// Package highlight splits message text into matched and unmatched spans for
// search-result display. Matching is case-insensitive; the spans preserve the
// original text byte-for-byte.
package highlight

import "strings"

// Span is a run of the original text, flagged when it matched the query.
type Span struct {
	Text  string `json:"text"`
	Match bool   `json:"match"`
}

// Spans splits text into an ordered sequence of spans covering the whole
// string with no gaps or overlaps. Matching is greedy left-to-right and
// non-overlapping: each match consumes the query length before the search
// resumes. An empty query yields a single non-matching span.
func Spans(text, query string) []Span {
	if query == "" || text == "" {
		return []Span{{Text: text}}
	}

	lowText := strings.ToLower(text)
	lowQuery := strings.ToLower(query)
	// Lowercasing can change byte length for a few Unicode code points; the
	// span offsets below index into the original text, so fall back to exact
	// matching when the folded strings do not line up.
	if len(lowText) != len(text) || len(lowQuery) != len(query) {
		lowText, lowQuery = text, query
	}
	n := len(lowQuery)

	var spans []Span
	pos := 0
	for pos < len(text) {
		idx := strings.Index(lowText[pos:], lowQuery)
		if idx < 0 {
			spans = append(spans, Span{Text: text[pos:]})
			break
		}
		if idx > 0 {
			spans = append(spans, Span{Text: text[pos : pos+idx]})
		}
		spans = append(spans, Span{Text: text[pos+idx : pos+idx+n], Match: true})
		pos += idx + n
	}
	return spans
}

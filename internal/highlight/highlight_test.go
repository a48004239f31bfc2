package highlight

import (
	"strings"
	"testing"
)

func TestSpans(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		query string
		want  []Span
	}{
		{
			name:  "single match mid-word",
			text:  "hello world",
			query: "lo",
			want:  []Span{{Text: "hel"}, {Text: "lo", Match: true}, {Text: " world"}},
		},
		{
			name:  "empty query",
			text:  "abc",
			query: "",
			want:  []Span{{Text: "abc"}},
		},
		{
			name:  "case insensitive, original case preserved",
			text:  "Homework DUE Monday",
			query: "due",
			want:  []Span{{Text: "Homework "}, {Text: "DUE", Match: true}, {Text: " Monday"}},
		},
		{
			name:  "repeated non-overlapping matches",
			text:  "aaaa",
			query: "aa",
			want:  []Span{{Text: "aa", Match: true}, {Text: "aa", Match: true}},
		},
		{
			name:  "no match",
			text:  "hello",
			query: "xyz",
			want:  []Span{{Text: "hello"}},
		},
		{
			name:  "match at start and end",
			text:  "go and go",
			query: "go",
			want:  []Span{{Text: "go", Match: true}, {Text: " and "}, {Text: "go", Match: true}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Spans(tt.text, tt.query)
			if len(got) != len(tt.want) {
				t.Fatalf("Spans(%q, %q) = %v, want %v", tt.text, tt.query, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("span %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSpansCoverWholeText(t *testing.T) {
	texts := []string{"hello world", "aaa", "Привет, мир", "", "x"}
	for _, text := range texts {
		for _, query := range []string{"", "a", "l", "мир", "zz"} {
			var b strings.Builder
			for _, s := range Spans(text, query) {
				b.WriteString(s.Text)
			}
			if b.String() != text {
				t.Errorf("Spans(%q, %q) does not cover input: got %q", text, query, b.String())
			}
		}
	}
}

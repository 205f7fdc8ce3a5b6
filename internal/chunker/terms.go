package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const maxTermRunes = 60

// CandidateTerms returns flashcard candidates found in markdown: heading
// texts first, then strong-emphasis spans, deduplicated case-insensitively and
// capped at limit (limit <= 0 means no cap).
func CandidateTerms(markdown string, limit int) []string {
	source := []byte(normalize(markdown))
	if len(source) == 0 {
		return nil
	}
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var headings, emphasized []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings = append(headings, nodeText(node, source))
			return ast.WalkSkipChildren, nil
		case *ast.Emphasis:
			if node.Level >= 2 {
				emphasized = append(emphasized, nodeText(node, source))
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	seen := make(map[string]bool)
	terms := make([]string, 0, len(headings)+len(emphasized))
	for _, raw := range append(headings, emphasized...) {
		term := strings.TrimSpace(strings.Trim(raw, ":："))
		if term == "" || utf8.RuneCountInString(term) > maxTermRunes {
			continue
		}
		key := strings.ToLower(term)
		if seen[key] {
			continue
		}
		seen[key] = true
		terms = append(terms, term)
		if limit > 0 && len(terms) >= limit {
			break
		}
	}
	return terms
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.CodeSpan:
			for c := t.FirstChild(); c != nil; c = c.NextSibling() {
				if seg, ok := c.(*ast.Text); ok {
					sb.Write(seg.Segment.Value(source))
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

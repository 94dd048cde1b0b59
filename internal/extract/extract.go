// Package extract turns normalized contract text into an ordered, gap-free,
// non-overlapping sequence of typed clauses.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/JaimeStill/covenant/internal/capability"
	"github.com/JaimeStill/covenant/internal/normalize"
	"github.com/JaimeStill/covenant/internal/taxonomy"
)

// ErrExtractionFailed wraps classifier failures.
var ErrExtractionFailed = errors.New("clause extraction failed")

// Clause is one located span of the normalized text.
// Start and End are byte offsets; Text is always Text[Start:End] of the source.
type Clause struct {
	Type     taxonomy.ClauseType `json:"clause_type"`
	Title    string              `json:"title"`
	Section  string              `json:"section_number"`
	Text     string              `json:"text"`
	Start    int                 `json:"start_offset"`
	End      int                 `json:"end_offset"`
	Page     int                 `json:"page_number"`
	KeyTerms []string            `json:"key_terms"`
}

// Extractor segments documents with a Classifier and enforces coverage.
type Extractor struct {
	classifier capability.Classifier
}

// New creates an Extractor backed by c.
func New(c capability.Classifier) *Extractor {
	return &Extractor{classifier: c}
}

// Extract classifies doc.Text and returns clauses in document order.
// Every non-whitespace byte of the source belongs to exactly one clause;
// text no segment claims becomes an "other" clause.
func (e *Extractor) Extract(ctx context.Context, doc *normalize.Document) ([]Clause, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return []Clause{}, nil
	}

	segments, err := e.classifier.Classify(ctx, doc.Text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	located := locate(doc.Text, segments)
	located = clip(doc.Text, located)
	clauses := fill(doc.Text, located)

	for i := range clauses {
		clauses[i].Page = doc.PageAt(clauses[i].Start)
		if clauses[i].KeyTerms == nil {
			clauses[i].KeyTerms = []string{}
		}
	}

	return clauses, nil
}

// locate resolves each segment to a byte range. Provider offsets are used
// when they select non-blank text; otherwise the segment text is searched
// forward from the previous match, then from the start, and finally with
// whitespace-insensitive matching. Unlocatable segments are dropped.
func locate(text string, segments []capability.Segment) []Clause {
	out := make([]Clause, 0, len(segments))
	cursor := 0

	for _, seg := range segments {
		start, end, ok := offsets(text, seg)
		if !ok {
			start, end, ok = search(text, seg.Text, cursor)
		}
		if !ok {
			continue
		}
		cursor = end

		out = append(out, Clause{
			Type:     taxonomy.ParseClauseType(seg.ClauseType),
			Title:    strings.TrimSpace(seg.Title),
			Section:  strings.TrimSpace(seg.Section),
			Start:    start,
			End:      end,
			KeyTerms: seg.KeyTerms,
		})
	}

	return out
}

func offsets(text string, seg capability.Segment) (int, int, bool) {
	if seg.Start == nil || seg.End == nil {
		return 0, 0, false
	}
	s, e := *seg.Start, *seg.End
	if s < 0 || e > len(text) || s >= e {
		return 0, 0, false
	}
	if strings.TrimSpace(text[s:e]) == "" {
		return 0, 0, false
	}
	return s, e, true
}

func search(text, fragment string, cursor int) (int, int, bool) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return 0, 0, false
	}

	if i := strings.Index(text[cursor:], fragment); i >= 0 {
		return cursor + i, cursor + i + len(fragment), true
	}
	if i := strings.Index(text, fragment); i >= 0 {
		return i, i + len(fragment), true
	}

	words := strings.Fields(fragment)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(strings.Join(words, `\s+`))
	if err != nil {
		return 0, 0, false
	}
	if loc := re.FindStringIndex(text[cursor:]); loc != nil {
		return cursor + loc[0], cursor + loc[1], true
	}
	if loc := re.FindStringIndex(text); loc != nil {
		return loc[0], loc[1], true
	}
	return 0, 0, false
}

// clip orders clauses by start and trims overlaps so earlier clauses keep
// their text. Clauses left with only whitespace are dropped.
func clip(text string, clauses []Clause) []Clause {
	slices.SortStableFunc(clauses, func(a, b Clause) int { return a.Start - b.Start })

	out := clauses[:0]
	prevEnd := 0
	for _, c := range clauses {
		c.Start = max(c.Start, prevEnd)
		c.Start, c.End = trimSpan(text, c.Start, c.End)
		if c.Start >= c.End {
			continue
		}
		prevEnd = c.End
		out = append(out, c)
	}
	return out
}

func trimSpan(text string, start, end int) (int, int) {
	for start < end && isSpace(text[start]) {
		start++
	}
	for end > start && isSpace(text[end-1]) {
		end--
	}
	return start, end
}

func isSpace(b byte) bool {
	return b < 0x80 && unicode.IsSpace(rune(b))
}

// fill inserts "other" clauses over uncovered non-whitespace gaps and sets
// each clause's text from the source.
func fill(text string, clauses []Clause) []Clause {
	out := make([]Clause, 0, len(clauses)*2+1)
	pos := 0

	gap := func(from, to int) {
		s, e := trimSpan(text, from, to)
		if s < e {
			out = append(out, Clause{
				Type:  taxonomy.ClauseOther,
				Title: gapTitle(text[s:e]),
				Start: s,
				End:   e,
			})
		}
	}

	for _, c := range clauses {
		gap(pos, c.Start)
		out = append(out, c)
		pos = c.End
	}
	gap(pos, len(text))

	for i := range out {
		out[i].Text = text[out[i].Start:out[i].End]
	}
	return out
}

func gapTitle(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	words := strings.Fields(line)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.Join(words, " ")
}

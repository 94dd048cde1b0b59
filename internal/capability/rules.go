package capability

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/covenant/internal/taxonomy"
)

//go:embed rules.yaml
var defaultRules []byte

// Rules is the deterministic rule set used by the rules provider.
type Rules struct {
	ClauseTypes   []ClauseRule   `yaml:"clause_types"`
	Factors       []FactorRule   `yaml:"factors"`
	DefaultRemedy Remedy         `yaml:"default_remedy"`
	ContractTypes []ContractRule `yaml:"contract_types"`
}

// ClauseRule labels segments by keyword frequency and sets the base risk.
type ClauseRule struct {
	Type     string   `yaml:"type"`
	Base     float64  `yaml:"base"`
	Keywords []string `yaml:"keywords"`
}

// FactorRule adds Weight to a clause score when a pattern matches and no
// Unless pattern does.
type FactorRule struct {
	Name      string   `yaml:"name"`
	Weight    float64  `yaml:"weight"`
	AppliesTo []string `yaml:"applies_to"`
	Patterns  []string `yaml:"patterns"`
	Unless    []string `yaml:"unless"`
	Remedy    Remedy   `yaml:"remedy"`

	patterns []*regexp.Regexp
	unless   []*regexp.Regexp
}

// Remedy is the amendment template drafted for a factor.
type Remedy struct {
	AmendmentType string   `yaml:"amendment_type"`
	Proposed      string   `yaml:"proposed"`
	Rationale     string   `yaml:"rationale"`
	Mitigation    string   `yaml:"mitigation"`
	Points        []string `yaml:"points"`
}

// ContractRule maps title or opening-text patterns to a contract type.
type ContractRule struct {
	Type     string   `yaml:"type"`
	Patterns []string `yaml:"patterns"`

	patterns []*regexp.Regexp
}

// LoadRules reads the rule set at path, or the embedded default when path is empty.
func LoadRules(path string) (*Rules, error) {
	data := defaultRules
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rules %s: %w", path, err)
		}
		data = b
	}
	return ParseRules(data)
}

// ParseRules decodes and compiles a YAML rule set.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if err := r.compile(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rules) compile() error {
	for _, c := range r.ClauseTypes {
		if string(taxonomy.ParseClauseType(c.Type)) != c.Type {
			return fmt.Errorf("rules: unknown clause type %q", c.Type)
		}
	}

	for i := range r.Factors {
		f := &r.Factors[i]
		if f.Name == "" {
			return fmt.Errorf("rules: factor %d has no name", i)
		}
		var err error
		if f.patterns, err = compileAll(f.Patterns); err != nil {
			return fmt.Errorf("rules: factor %s: %w", f.Name, err)
		}
		if f.unless, err = compileAll(f.Unless); err != nil {
			return fmt.Errorf("rules: factor %s: %w", f.Name, err)
		}
	}

	for i := range r.ContractTypes {
		c := &r.ContractTypes[i]
		var err error
		if c.patterns, err = compileAll(c.Patterns); err != nil {
			return fmt.Errorf("rules: contract type %s: %w", c.Type, err)
		}
	}

	return nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func anyMatch(res []*regexp.Regexp, text string) string {
	for _, re := range res {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}

func (r *Rules) clauseRule(t string) (ClauseRule, bool) {
	for _, c := range r.ClauseTypes {
		if c.Type == t {
			return c, true
		}
	}
	return ClauseRule{}, false
}

// RulesProvider implements Provider with keyword and regex heuristics.
// It is safe for concurrent use.
type RulesProvider struct {
	rules *Rules
}

// NewRules creates a rules-backed provider.
func NewRules(rules *Rules) *RulesProvider {
	return &RulesProvider{rules: rules}
}

func (p *RulesProvider) Name() string { return ProviderRules }

var (
	numberedHeading = regexp.MustCompile(
		`(?im)^[ \t]*(?:(?:article|section|clause)[ \t]+(\d{1,3}(?:\.\d{1,3})*)[.):]?|(\d{1,3}(?:\.\d{1,3})*)[.)])[ \t]+(\S[^\n]*)$`,
	)
	capsHeading  = regexp.MustCompile(`(?m)^[ \t]*([A-Z][A-Z0-9 &/,'-]{2,79})[ \t]*$`)
	blankLines   = regexp.MustCompile(`\n[ \t]*\n`)
	definedTerms = regexp.MustCompile(`["“]([^"”\n]{2,60})["”]`)
)

type heading struct {
	start   int
	section string
	title   string
	bare    bool
}

func (p *RulesProvider) Classify(ctx context.Context, text string) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spans := headingSpans(text)
	if len(spans) == 0 {
		spans = paragraphSpans(text)
	}

	segments := make([]Segment, 0, len(spans))
	for _, sp := range spans {
		body := strings.TrimRight(text[sp.start:sp.end], " \t\r\n\f")
		if strings.TrimSpace(body) == "" {
			continue
		}
		start, end := sp.start, sp.start+len(body)

		title := sp.title
		if title == "" {
			title = shortTitle(body)
		}

		segments = append(segments, Segment{
			ClauseType: p.label(title, body),
			Title:      title,
			Section:    sp.section,
			Text:       body,
			Start:      &start,
			End:        &end,
			KeyTerms:   keyTerms(body),
		})
	}

	return segments, nil
}

type span struct {
	heading
	end int
}

func headingSpans(text string) []span {
	var hs []heading

	for _, m := range numberedHeading.FindAllStringSubmatchIndex(text, -1) {
		section := submatch(text, m, 1)
		if section == "" {
			section = submatch(text, m, 2)
		}
		line := strings.TrimSpace(submatch(text, m, 3))
		title := headingTitle(line)
		hs = append(hs, heading{
			start:   m[0],
			section: section,
			title:   title,
			bare:    strings.Trim(strings.TrimPrefix(line, title), ".:) \t") == "",
		})
	}

	for _, m := range capsHeading.FindAllStringSubmatchIndex(text, -1) {
		hs = append(hs, heading{
			start: m[0],
			title: strings.TrimSpace(submatch(text, m, 1)),
			bare:  true,
		})
	}

	sort.SliceStable(hs, func(i, j int) bool { return hs[i].start < hs[j].start })
	hs = slices.CompactFunc(hs, func(a, b heading) bool { return a.start == b.start })

	spans := make([]span, len(hs))
	for i, h := range hs {
		end := len(text)
		if i+1 < len(hs) {
			end = hs[i+1].start
		}
		spans[i] = span{heading: h, end: end}
	}

	return mergeBareHeadings(text, spans)
}

// mergeBareHeadings folds a heading that has no body of its own into the
// span that follows it. A numbered line that carries its clause text after
// the run-in title is not bare.
func mergeBareHeadings(text string, spans []span) []span {
	out := spans[:0]
	for i := 0; i < len(spans); i++ {
		sp := spans[i]
		line, _, _ := strings.Cut(text[sp.start:sp.end], "\n")
		rest := strings.TrimSpace(text[sp.start+len(line) : sp.end])
		if sp.bare && rest == "" && i+1 < len(spans) {
			next := spans[i+1]
			next.start = sp.start
			if next.section == "" {
				next.title = sp.title
			}
			spans[i+1] = next
			continue
		}
		out = append(out, sp)
	}
	return out
}

func paragraphSpans(text string) []span {
	var spans []span
	start := 0
	for _, m := range blankLines.FindAllStringIndex(text, -1) {
		spans = append(spans, span{heading: heading{start: start}, end: m[0]})
		start = m[1]
	}
	spans = append(spans, span{heading: heading{start: start}, end: len(text)})
	return spans
}

func submatch(text string, m []int, group int) string {
	if m[2*group] < 0 {
		return ""
	}
	return text[m[2*group]:m[2*group+1]]
}

// headingTitle takes the run-in heading of a numbered line: the text before
// the first period or colon, or the first few words of a long sentence.
func headingTitle(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.IndexAny(line, ".:"); i > 0 && i <= 80 {
		return strings.TrimSpace(line[:i])
	}
	return shortTitle(line)
}

func shortTitle(text string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	words := strings.Fields(first)
	if len(words) > 8 {
		words = words[:8]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:")
}

func (p *RulesProvider) label(title, body string) string {
	lowerTitle := strings.ToLower(title)
	lowerBody := strings.ToLower(body)

	best, bestScore := string(taxonomy.ClauseOther), 0
	for _, c := range p.rules.ClauseTypes {
		score := 0
		for _, kw := range c.Keywords {
			kw = strings.ToLower(kw)
			score += 3*strings.Count(lowerTitle, kw) + strings.Count(lowerBody, kw)
		}
		if score > bestScore {
			best, bestScore = c.Type, score
		}
	}
	return best
}

func keyTerms(text string) []string {
	var terms []string
	for _, m := range definedTerms.FindAllStringSubmatch(text, -1) {
		term := strings.TrimSpace(m[1])
		if term != "" && !slices.Contains(terms, term) {
			terms = append(terms, term)
		}
	}
	return terms
}

func (p *RulesProvider) Score(ctx context.Context, in ScoreInput) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}

	clauseType := string(taxonomy.ParseClauseType(in.ClauseType))
	value := 0.0
	if c, ok := p.rules.clauseRule(clauseType); ok {
		value = c.Base
	}

	var (
		factors  []string
		evidence []string
	)
	for _, f := range p.rules.Factors {
		if len(f.AppliesTo) > 0 && !slices.Contains(f.AppliesTo, clauseType) {
			continue
		}
		m := anyMatch(f.patterns, in.Text)
		if m == "" || anyMatch(f.unless, in.Text) != "" {
			continue
		}
		value += f.Weight
		factors = append(factors, f.Name)
		evidence = append(evidence, fmt.Sprintf("%s (%q)", strings.ReplaceAll(f.Name, "_", " "), m))
	}

	analysis := fmt.Sprintf("No elevated risk indicators found in this %s clause.", clauseName(clauseType))
	if len(evidence) > 0 {
		analysis = fmt.Sprintf(
			"The %s clause shows: %s.",
			clauseName(clauseType), strings.Join(evidence, "; "),
		)
	}

	return Score{
		Value:    min(value, 1),
		Factors:  factors,
		Analysis: analysis,
	}, nil
}

func clauseName(t string) string {
	return strings.ReplaceAll(t, "_", " ")
}

func (p *RulesProvider) Draft(ctx context.Context, in DraftInput) ([]Draft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var drafts []Draft
	for _, f := range p.rules.Factors {
		if !slices.Contains(in.Factors, f.Name) || f.Remedy.Proposed == "" {
			continue
		}
		drafts = append(drafts, remedyDraft(f.Remedy, in.Text))
	}

	if len(drafts) == 0 {
		drafts = append(drafts, remedyDraft(p.rules.DefaultRemedy, in.Text))
	}

	return drafts, nil
}

func remedyDraft(r Remedy, original string) Draft {
	proposed := strings.TrimSpace(r.Proposed)
	if r.AmendmentType == string(taxonomy.AmendmentModification) && strings.TrimSpace(original) != "" {
		proposed = strings.TrimSpace(original) + " " + proposed
	}
	return Draft{
		AmendmentType:     r.AmendmentType,
		ProposedText:      proposed,
		Rationale:         r.Rationale,
		RiskMitigation:    r.Mitigation,
		NegotiationPoints: slices.Clone(r.Points),
	}
}

var (
	partiesPattern = regexp.MustCompile(
		`(?is)\bbetween\s+(.{2,120}?)(?:\s*\([^)]*\))?,?\s+and\s+(.{2,120}?)(?:\s*\([^)]*\))?\s*[,.;\n]`,
	)
	datePart         = `([A-Z][a-z]+\s+\d{1,2},?\s+\d{4}|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4})`
	effectivePattern = regexp.MustCompile(
		`(?i)(?:effective|commenc\w*)\s+(?:as\s+of\s+|date[:\s]+|on\s+)?(?:the\s+)?` + datePart,
	)
	expirationPattern = regexp.MustCompile(
		`(?i)(?:expir\w*|terminat\w*|until|through)\s+(?:on\s+)?(?:date[:\s]+)?` + datePart,
	)
	dateLayouts = []string{"January 2, 2006", "January 2 2006", "2006-01-02", "01/02/2006", "1/2/2006"}
)

func (p *RulesProvider) Profile(ctx context.Context, text string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	title := firstLine(text)
	opening := text
	if len(opening) > 5000 {
		opening = opening[:5000]
	}

	return Profile{
		Title:          title,
		ContractType:   p.contractType(title, opening),
		Parties:        parties(opening),
		EffectiveDate:  findDate(effectivePattern, opening),
		ExpirationDate: findDate(expirationPattern, text),
		Summary:        summary(text, title),
	}, nil
}

func (p *RulesProvider) contractType(title, opening string) string {
	for _, in := range []string{title, opening} {
		for _, c := range p.rules.ContractTypes {
			if anyMatch(c.patterns, in) != "" {
				return c.Type
			}
		}
	}
	return "other"
}

func firstLine(text string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return ""
}

func parties(text string) []string {
	m := partiesPattern.FindStringSubmatch(text)
	if m == nil {
		return []string{}
	}
	var out []string
	for _, name := range m[1:] {
		name = strings.Join(strings.Fields(name), " ")
		if before, _, ok := strings.Cut(name, ", a "); ok {
			name = before
		}
		if before, _, ok := strings.Cut(name, ", an "); ok {
			name = before
		}
		name = strings.Trim(name, " ,.;")
		if name != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func findDate(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	raw := strings.Join(strings.Fields(m[1]), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(time.DateOnly)
		}
	}
	return ""
}

func summary(text, title string) string {
	body := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), title))
	para, _, _ := strings.Cut(body, "\n\n")
	para = strings.Join(strings.Fields(para), " ")
	if len(para) <= 300 {
		return para
	}
	cut := strings.LastIndex(para[:300], " ")
	if cut <= 0 {
		cut = 300
	}
	return para[:cut] + "..."
}

package extraction

import (
	"regexp"
	"sort"
	"strings"

	"dealtrack/models"
)

// Trace outcome tags
const (
	OutcomeMatched         = "matched"
	OutcomeNoMatch         = "no_match"
	OutcomeInvalidSelector = "invalid_selector"
	OutcomeEmptyAfterPost  = "empty_after_post"
	OutcomeSkippedInactive = "skipped_inactive"
)

// TraceEntry is one per-rule diagnostic record. Attached to the attempt log
// for debugging only, never authoritative.
type TraceEntry struct {
	RuleID   int    `json:"rule_id"`
	Mode     string `json:"mode"`
	Selector string `json:"selector"`
	Outcome  string `json:"outcome"`
	Value    string `json:"value,omitempty"`
}

// Pipeline runs ordered extraction rules over one fetched document.
type Pipeline struct {
	doc *Document
}

// NewPipeline parses raw markup into a pipeline ready to run rules.
func NewPipeline(content string) (*Pipeline, error) {
	doc, err := LoadHTML(content)
	if err != nil {
		return nil, err
	}
	return &Pipeline{doc: doc}, nil
}

// ExtractField runs the rules for one field in ascending priority order and
// returns the first non-empty result plus the full diagnostic trace. An
// empty result after exhausting every rule is a null field, not an error.
func (p *Pipeline) ExtractField(field string, rules []models.ScraperRule) (string, []TraceEntry) {
	ordered := make([]models.ScraperRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var trace []TraceEntry
	for _, rule := range ordered {
		if rule.FieldType != field {
			continue
		}
		if !rule.IsActive {
			trace = append(trace, TraceEntry{RuleID: rule.ID, Mode: rule.ExtractionMode, Selector: rule.Selector, Outcome: OutcomeSkippedInactive})
			continue
		}

		raw, outcome := p.runRule(rule)
		if raw == "" {
			trace = append(trace, TraceEntry{RuleID: rule.ID, Mode: rule.ExtractionMode, Selector: rule.Selector, Outcome: outcome})
			continue
		}

		if rule.IsBoolean() {
			value := booleanStatus(raw, rule.TrueValues)
			trace = append(trace, TraceEntry{RuleID: rule.ID, Mode: rule.ExtractionMode, Selector: rule.Selector, Outcome: OutcomeMatched, Value: value})
			return value, trace
		}

		value := postProcess(field, raw, rule)
		if value == "" {
			trace = append(trace, TraceEntry{RuleID: rule.ID, Mode: rule.ExtractionMode, Selector: rule.Selector, Outcome: OutcomeEmptyAfterPost, Value: raw})
			continue
		}

		trace = append(trace, TraceEntry{RuleID: rule.ID, Mode: rule.ExtractionMode, Selector: rule.Selector, Outcome: OutcomeMatched, Value: value})
		return value, trace
	}

	return "", trace
}

// runRule executes one rule in its extraction mode and returns the raw value.
func (p *Pipeline) runRule(rule models.ScraperRule) (string, string) {
	attribute := ""
	if rule.Attribute.Valid {
		attribute = rule.Attribute.String
	}

	switch rule.ExtractionMode {
	case models.ModeQuery:
		if v := p.doc.First(rule.Selector, attribute); v != "" {
			return v, OutcomeMatched
		}
		return "", OutcomeNoMatch

	case models.ModeQueryRegex:
		captured := p.doc.First(rule.Selector, attribute)
		if captured == "" {
			return "", OutcomeNoMatch
		}
		if v := applyPatterns(captured, rule.Patterns()); v != "" {
			return v, OutcomeMatched
		}
		return "", OutcomeNoMatch

	case models.ModeCSS:
		xpath, ok := TranslateCSS(rule.Selector)
		if !ok {
			return "", OutcomeInvalidSelector
		}
		if v := p.doc.First(xpath, attribute); v != "" {
			return v, OutcomeMatched
		}
		return "", OutcomeNoMatch

	case models.ModeJSONPath:
		for _, block := range p.doc.JSONBlocks() {
			if v := WalkPath(block, rule.Selector); v != "" {
				return v, OutcomeMatched
			}
		}
		return "", OutcomeNoMatch
	}

	return "", OutcomeInvalidSelector
}

// applyPatterns tries the primary pattern then each fallback in order against
// the captured text. The first pattern that matches wins: its first capture
// group, or the whole match when the pattern has no group. Invalid patterns
// are skipped; operator regexes fail open.
func applyPatterns(text string, patterns []string) string {
	for _, pattern := range patterns {
		re, err := regexp.Compile(autoDelimit(pattern))
		if err != nil {
			continue
		}
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return m[0]
	}
	return ""
}

// autoDelimit accepts operator patterns pasted with PCRE-style /.../ wrapping
// and bare patterns alike.
func autoDelimit(pattern string) string {
	p := strings.TrimSpace(pattern)
	if len(p) >= 2 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/") {
		return p[1 : len(p)-1]
	}
	return p
}

// booleanStatus matches the raw text case-insensitively against the rule's
// true-value set, bypassing normal post-processing.
func booleanStatus(raw string, trueValues []string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	for _, t := range trueValues {
		if value == strings.ToLower(strings.TrimSpace(t)) {
			return models.StatusInStock
		}
	}
	return models.StatusOutOfStock
}

// postProcess applies trim, field-specific normalization and the optional
// caller regex-replace, in that order.
func postProcess(field, raw string, rule models.ScraperRule) string {
	value := raw
	if rule.Trim {
		value = strings.TrimSpace(value)
	}

	switch field {
	case models.FieldPrice:
		value = NormalizePrice(value, rule.StripTokens)
	case models.FieldStatus:
		value = NormalizeStatus(value)
	case models.FieldShipping:
		value = NormalizeShipping(value)
	}

	if rule.ReplacePattern.Valid && rule.ReplacePattern.String != "" {
		replaceWith := ""
		if rule.ReplaceWith.Valid {
			replaceWith = rule.ReplaceWith.String
		}
		value = ApplyReplace(value, rule.ReplacePattern.String, replaceWith)
	}

	return value
}

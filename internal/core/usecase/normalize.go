package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/d3i-infra/port-google-home/internal/core/domain"
)

// LanguageRule holds the locale-specific text surgery for one export language.
type LanguageRule struct {
	Prefixes   []string
	NoResponse string
}

// DefaultLanguageRules covers the languages in the default category table.
// Only Dutch exports carry a known command prefix.
var DefaultLanguageRules = map[domain.Language]LanguageRule{
	domain.LanguageNL: {Prefixes: []string{"Je hebt"}, NoResponse: "Geen reactie"},
	domain.LanguageEN: {NoResponse: "No response"},
	domain.LanguageDE: {NoResponse: "Keine Antwort"},
}

const fallbackNoResponse = "No response"

// isoTimestamp matches RFC 3339 stamps. Fractional seconds and a Z suffix
// are dropped; a numeric offset is kept after the time.
var isoTimestamp = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})T(\d{2}:\d{2}:\d{2})(?:\.\d+)?(?:Z|([+-]\d{2}:?\d{2}))?$`)

type Normalizer struct {
	rules map[domain.Language]LanguageRule
}

func NewNormalizer(rules map[domain.Language]LanguageRule) *Normalizer {
	if rules == nil {
		rules = DefaultLanguageRules
	}
	return &Normalizer{rules: rules}
}

func (n *Normalizer) Rule(lang domain.Language) LanguageRule {
	rule, ok := n.rules[lang]
	if !ok {
		return LanguageRule{NoResponse: fallbackNoResponse}
	}
	if rule.NoResponse == "" {
		rule.NoResponse = fallbackNoResponse
	}
	return rule
}

// Normalize cleans raw interactions into the shared table, preserving order.
func (n *Normalizer) Normalize(lang domain.Language, raw []domain.RawInteraction) domain.Table {
	rule := n.Rule(lang)
	table := make(domain.Table, 0, len(raw))
	for _, item := range raw {
		table = append(table, domain.NormalizedRecord{
			Timestamp: CanonicalTimestamp(item.Timestamp),
			Command:   cleanCommand(rule, item.Command, item.TrailingToken),
			Response:  cleanResponse(rule, item.Response, item.HasResponse),
		})
	}
	return table
}

// CanonicalTimestamp rewrites ISO-8601 stamps to "YYYY-MM-DD, HH:MM:SS",
// followed by the offset when it is not UTC ("2023-01-01, 10:00:00+01:00").
// Anything else, including an already canonical value, is only trimmed.
func CanonicalTimestamp(value string) string {
	trimmed := strings.TrimSpace(value)
	return isoTimestamp.ReplaceAllString(trimmed, "$1, $2$3")
}

func cleanCommand(rule LanguageRule, command string, trailingToken bool) string {
	out := strings.TrimSpace(command)
	if trailingToken {
		out = dropLastToken(out)
	}
	for _, prefix := range rule.Prefixes {
		if strings.HasPrefix(out, prefix) {
			out = strings.TrimSpace(strings.TrimPrefix(out, prefix))
			break
		}
	}
	return out
}

func cleanResponse(rule LanguageRule, response string, hasResponse bool) string {
	if !hasResponse {
		return rule.NoResponse
	}
	return strings.TrimSpace(response)
}

func dropLastToken(value string) string {
	idx := strings.LastIndexFunc(value, unicode.IsSpace)
	if idx < 0 {
		return value
	}
	return strings.TrimRightFunc(value[:idx], unicode.IsSpace)
}

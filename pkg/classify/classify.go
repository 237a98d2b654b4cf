// Package classify assigns a category and a goal flag to a task from
// its title and notes. It is pure and never fails: malformed input
// falls through to the defaults.
package classify

import (
	"regexp"
	"strings"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Unclassified is the default category.
const Unclassified = "UNCLASSIFIED"

// Built-in categories resolved from embedded tags when no keyword rule
// matches the title.
const (
	Procurement = "PROCUREMENT"
	Assistance  = "ASSISTANCE"
	General     = "GENERAL"
)

// tagPattern matches both embedded tag forms: "[TAG]" and "TAG: value".
var tagPattern = regexp.MustCompile(`\[([^\[\]]*)\]|TAG:\s*([\w\-]+)`)

var (
	procurementTags = []string{"PROCUREMENT", "TENDER", "CLC", "LICITACAO"}
	assistanceTags  = []string{"ASSISTANCE", "STUDENT-AID", "ESTUDANTIL"}
)

// Classify resolves (category, countsTowardGoal) for a task.
//
// The configured rules are checked first, in order, as case-insensitive
// substrings of the title; the first matching rule wins. Failing that,
// tags embedded in title+notes are resolved with fixed priority
// PROCUREMENT > ASSISTANCE > GENERAL.
func Classify(title, notes string, rules []model.CategoryRule) (string, bool) {
	upperTitle := strings.ToUpper(title)
	for _, rule := range rules {
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(upperTitle, strings.ToUpper(kw)) {
				return rule.Name, rule.CountsTowardGoal
			}
		}
	}

	tags := extractTags(strings.ToUpper(title + " " + notes))
	switch {
	case hasAny(tags, procurementTags):
		return Procurement, true
	case hasAny(tags, assistanceTags):
		return Assistance, true
	case hasAny(tags, []string{General}):
		return General, false
	}
	return Unclassified, false
}

func extractTags(text string) []string {
	matches := tagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := m[1]
		if tag == "" {
			tag = m[2]
		}
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func hasAny(tags, wanted []string) bool {
	for _, t := range tags {
		for _, w := range wanted {
			if t == w {
				return true
			}
		}
	}
	return false
}

// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package subscription

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/telekom/exception-subscriptions/pkg/utils"
)

// OptionKey is the per-project option under which subscriptions are stored.
const OptionKey = "subscriptions"

// Placeholder is the example shown next to the admin text field.
const Placeholder = "module.submodule.* example@domain.com,foo@bar.com"

var emailRegex = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// ValidationError reports the first offending line of a subscription text.
type ValidationError struct {
	// Line is the 1-based line number within the trimmed text.
	Line int `json:"line"`
	// Text is the offending line.
	Text    string `json:"text"`
	Message string `json:"error"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Rule maps one culprit pattern to the addresses that want to hear about it.
type Rule struct {
	Pattern string   `json:"pattern" yaml:"pattern"`
	Emails  []string `json:"emails"  yaml:"emails"`

	glob *utils.Glob
}

// Set is the ordered pattern → emails mapping of a project.
// Rules keep the order in which they were written.
type Set struct {
	rules []*Rule
	index map[string]int
}

// NewSet builds a set from rules, applying the same checks as Parse.
func NewSet(rules ...Rule) (*Set, error) {
	s := &Set{index: make(map[string]int, len(rules))}
	for i, r := range rules {
		line := r.Pattern + " " + strings.Join(r.Emails, ",")
		if err := s.add(r.Pattern, r.Emails, i+1, line); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Parse reads a text block with one "<pattern> <email1,email2,...>" per line.
// The whole text is trimmed first; every remaining line, blank ones included,
// must consist of exactly two tokens separated by a single space.
func Parse(text string) (*Set, error) {
	s := &Set{index: make(map[string]int)}

	text = strings.TrimSpace(text)
	if text == "" {
		return s, nil
	}

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		lineNo := i + 1

		tokens := strings.Split(line, " ")
		if len(tokens) != 2 {
			return nil, &ValidationError{
				Line:    lineNo,
				Text:    line,
				Message: fmt.Sprintf("Invalid subscription specification: %s. Must specify a module pattern and list of emails", line),
			}
		}

		if err := s.add(tokens[0], strings.Split(tokens[1], ","), lineNo, line); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Set) add(pattern string, emails []string, lineNo int, line string) error {
	glob, err := cleanPattern(pattern)
	if err != nil {
		return &ValidationError{Line: lineNo, Text: line, Message: err.Error()}
	}

	if err := cleanEmails(emails); err != nil {
		return &ValidationError{Line: lineNo, Text: line, Message: err.Error()}
	}

	if _, exists := s.index[pattern]; exists {
		return &ValidationError{
			Line:    lineNo,
			Text:    line,
			Message: fmt.Sprintf("Duplicate subscription: %s", line),
		}
	}

	s.index[pattern] = len(s.rules)
	s.rules = append(s.rules, &Rule{
		Pattern: pattern,
		Emails:  append([]string(nil), emails...),
		glob:    glob,
	})
	return nil
}

func cleanPattern(pattern string) (*utils.Glob, error) {
	if pattern == "" {
		return nil, fmt.Errorf("pattern cannot be empty")
	}
	glob, err := utils.CompileGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s is not a valid pattern", pattern)
	}
	return glob, nil
}

func cleanEmails(emails []string) error {
	if len(emails) == 0 {
		return fmt.Errorf("at least one email address is required")
	}
	for _, email := range emails {
		if !IsValidEmail(email) {
			return fmt.Errorf("%s is not a valid email address", email)
		}
	}
	return nil
}

// IsValidEmail reports whether s looks like local@domain.tld.
func IsValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

// Len returns the number of rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Empty reports whether the project has no subscriptions, i.e. is not configured.
func (s *Set) Empty() bool {
	return s.Len() == 0
}

// Rules returns copies of the rules in their original order.
func (s *Set) Rules() []Rule {
	if s == nil {
		return nil
	}
	out := make([]Rule, 0, len(s.rules))
	for _, r := range s.rules {
		out = append(out, Rule{Pattern: r.Pattern, Emails: append([]string(nil), r.Emails...)})
	}
	return out
}

// Emails returns the addresses subscribed to pattern.
func (s *Set) Emails(pattern string) ([]string, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.index[pattern]
	if !ok {
		return nil, false
	}
	return append([]string(nil), s.rules[i].Emails...), true
}

// Text renders the set back into the admin text format.
func (s *Set) Text() string {
	if s == nil {
		return ""
	}
	lines := make([]string, 0, len(s.rules))
	for _, r := range s.rules {
		lines = append(lines, r.Pattern+" "+strings.Join(r.Emails, ","))
	}
	return strings.Join(lines, "\n")
}

// Match returns the emails of every rule whose pattern matches culprit, in
// rule order. Addresses subscribed through several patterns appear once per
// matching pattern.
func (s *Set) Match(culprit string) []string {
	var recipients []string
	if s == nil {
		return recipients
	}
	for _, r := range s.rules {
		if r.glob.Match(culprit) {
			recipients = append(recipients, r.Emails...)
		}
	}
	return recipients
}

// MatchingPatterns returns the patterns that match culprit, in rule order.
func (s *Set) MatchingPatterns(culprit string) []string {
	var patterns []string
	if s == nil {
		return patterns
	}
	for _, r := range s.rules {
		if r.glob.Match(culprit) {
			patterns = append(patterns, r.Pattern)
		}
	}
	return patterns
}

// MarshalJSON encodes the set as an ordered list of rules.
func (s *Set) MarshalJSON() ([]byte, error) {
	rules := s.Rules()
	if rules == nil {
		rules = []Rule{}
	}
	return json.Marshal(rules)
}

// UnmarshalJSON decodes an ordered list of rules and validates it.
func (s *Set) UnmarshalJSON(data []byte) error {
	var rules []Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return err
	}
	parsed, err := NewSet(rules...)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}

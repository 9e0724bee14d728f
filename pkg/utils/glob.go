// SPDX-FileCopyrightText: 2024 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// Glob is a compiled shell-style pattern.
type Glob struct {
	pattern string
	re      *regexp.Regexp
}

// CompileGlob compiles a shell-style pattern (fnmatch semantics):
//   - "*" matches any sequence of characters, including "." and "/"
//   - "?" matches any single character
//   - "[seq]" matches any character in seq, "[!seq]" any character not in seq
//   - a "[" without a closing "]" is matched literally
//
// Matching is case sensitive.
//
// Examples:
//
//	"module.*"       matches "module.sub" and "module.sub.deep"
//	"*.views"        matches "app.views"
//	"app/*.py"       matches "app/handlers/user.py"
//	"worker.[!a]*"   matches "worker.beat", not "worker.a"
func CompileGlob(pattern string) (*Glob, error) {
	g := &Glob{pattern: pattern}

	// Patterns without wildcards are compared exactly
	if !strings.ContainsAny(pattern, "*?[") {
		return g, nil
	}

	re, err := regexp.Compile(translateGlob(pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	g.re = re
	return g, nil
}

// MustCompileGlob is like CompileGlob but panics on an invalid pattern.
func MustCompileGlob(pattern string) *Glob {
	g, err := CompileGlob(pattern)
	if err != nil {
		panic(err)
	}
	return g
}

// Match reports whether value matches the pattern.
func (g *Glob) Match(value string) bool {
	if g.pattern == "*" {
		return true
	}
	if g.re == nil {
		return g.pattern == value
	}
	return g.re.MatchString(value)
}

// String returns the source pattern.
func (g *Glob) String() string {
	return g.pattern
}

// GlobMatch checks if a value matches a shell-style pattern.
// Invalid patterns return false and the error.
//
//	GlobMatch("*", "anything")                 → true, nil
//	GlobMatch("module.*", "module.sub")         → true, nil
//	GlobMatch("module.*", "other.mod")          → false, nil
//	GlobMatch("admin", "admin")                 → true, nil
//	GlobMatch("[z-a]", "test")                  → false, syntax error
func GlobMatch(pattern, value string) (bool, error) {
	// Short-circuit for universal wildcard
	if pattern == "*" {
		return true, nil
	}

	g, err := CompileGlob(pattern)
	if err != nil {
		return false, err
	}
	return g.Match(value), nil
}

// GlobMatchAny checks if any pattern in the list matches the value.
// Patterns that fail to compile are skipped.
func GlobMatchAny(patterns []string, value string) bool {
	for _, pattern := range patterns {
		if matched, _ := GlobMatch(pattern, value); matched {
			return true
		}
	}
	return false
}

// translateGlob converts a shell pattern into an anchored regular expression.
func translateGlob(pattern string) string {
	var b strings.Builder
	b.WriteString(`^(?s:`)

	runes := []rune(pattern)
	n := len(runes)
	for i := 0; i < n; {
		c := runes[i]
		i++

		switch c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		case '[':
			j := i
			if j < n && runes[j] == '!' {
				j++
			}
			if j < n && runes[j] == ']' {
				j++
			}
			for j < n && runes[j] != ']' {
				j++
			}
			if j >= n {
				b.WriteString(`\[`)
				continue
			}
			b.WriteString(translateClass(string(runes[i:j])))
			i = j + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}

	b.WriteString(`)$`)
	return b.String()
}

// translateClass renders the body of a bracket expression. Only "-" keeps its
// range meaning; every other metacharacter is taken literally.
func translateClass(body string) string {
	var b strings.Builder
	b.WriteByte('[')
	if strings.HasPrefix(body, "!") {
		b.WriteByte('^')
		body = body[1:]
	}
	for _, r := range body {
		switch r {
		case '\\', '[', ']', '^':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(']')
	return b.String()
}

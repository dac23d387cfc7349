// Package filter implements the hard (name) and soft (time/size) filters
// of a folder pair and the passes that apply them to a merged tree.
package filter

import (
	"sort"
	"strings"

	ig "github.com/sabhiram/go-gitignore"
)

// SubtreeExcluder is implemented by filters that can tell in advance that
// every descendant of a directory is excluded, so traversal may skip it.
type SubtreeExcluder interface {
	ExcludesSubtree(relDir string) bool
}

// PatternFilter is a compiled include/exclude filter using gitignore syntax.
// An empty include list includes everything.
type PatternFilter struct {
	include     *ig.GitIgnore
	exclude     *ig.GitIgnore
	hasInclude  bool
	hasExclude  bool
	hasNegation bool
	foldCase    bool
	key         string
}

// NewPatternFilter compiles the given patterns. With foldCase set, patterns
// and paths are compared case-insensitively.
func NewPatternFilter(include, exclude []string, foldCase bool) *PatternFilter {
	include = normalizePatterns(include, foldCase)
	exclude = normalizePatterns(exclude, foldCase)

	f := &PatternFilter{
		include:    ig.CompileIgnoreLines(include...),
		exclude:    ig.CompileIgnoreLines(exclude...),
		hasInclude: len(include) > 0,
		hasExclude: len(exclude) > 0,
		foldCase:   foldCase,
	}
	for _, p := range exclude {
		if strings.HasPrefix(p, "!") {
			f.hasNegation = true
		}
	}

	var b strings.Builder
	b.WriteString("include:")
	b.WriteString(strings.Join(include, "\n"))
	b.WriteString("\x00exclude:")
	b.WriteString(strings.Join(exclude, "\n"))
	if foldCase {
		b.WriteString("\x00fold")
	}
	f.key = b.String()
	return f
}

// normalizePatterns trims, drops blanks and comments and sorts the patterns.
// Order only matters for negations, so lists containing them are kept as is.
func normalizePatterns(patterns []string, foldCase bool) []string {
	out := make([]string, 0, len(patterns))
	negated := false
	for _, p := range patterns {
		p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
		if p == "" || strings.HasPrefix(p, "#") {
			continue
		}
		if foldCase {
			p = strings.ToLower(p)
		}
		if strings.HasPrefix(p, "!") {
			negated = true
		}
		out = append(out, p)
	}
	if !negated {
		sort.Strings(out)
	}
	return out
}

func (f *PatternFilter) norm(relPath string) string {
	if f.foldCase {
		return strings.ToLower(relPath)
	}
	return relPath
}

// PassFile reports whether a file or symlink passes the filter
func (f *PatternFilter) PassFile(relPath string) bool {
	p := f.norm(relPath)
	if f.exclude.MatchesPath(p) {
		return false
	}
	return !f.hasInclude || f.include.MatchesPath(p)
}

// PassDir reports whether a directory passes the filter. A pattern that
// matches every child of a directory also excludes the directory itself.
func (f *PatternFilter) PassDir(relPath string) bool {
	p := f.norm(relPath)
	if f.exclude.MatchesPath(p) || f.exclude.MatchesPath(p+"/") {
		return false
	}
	return !f.hasInclude || f.include.MatchesPath(p) || f.include.MatchesPath(p+"/")
}

// ExcludesSubtree reports whether nothing below relDir can pass
func (f *PatternFilter) ExcludesSubtree(relDir string) bool {
	if f.hasNegation {
		return false
	}
	return f.exclude.MatchesPath(f.norm(relDir) + "/")
}

// Key returns the canonical pattern representation
func (f *PatternFilter) Key() string {
	return f.key
}

// IsNull reports whether the filter lets everything pass
func (f *PatternFilter) IsNull() bool {
	return !f.hasInclude && !f.hasExclude
}

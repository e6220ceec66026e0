package types

import (
	"regexp"
)

// RuntimePathPattern matches paths relative to an environment root that may
// survive cleanup even when untouched. Paths are slash-separated and
// directories end with "/".
type RuntimePathPattern struct {
	source string
	re     *regexp.Regexp
}

// CompileRuntimePath compiles an expression anchored to the whole relative
// path.
func CompileRuntimePath(expr string) (RuntimePathPattern, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return RuntimePathPattern{}, err
	}
	return RuntimePathPattern{source: expr, re: re}, nil
}

// MustCompileRuntimePath is like CompileRuntimePath but panics on error.
func MustCompileRuntimePath(expr string) RuntimePathPattern {
	p, err := CompileRuntimePath(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether the relative path matches.
func (p RuntimePathPattern) Match(rel string) bool {
	return p.re != nil && p.re.MatchString(rel)
}

// String returns the expression the pattern was compiled from.
func (p RuntimePathPattern) String() string {
	return p.source
}

// MatchAny reports whether any pattern matches rel.
func MatchAny(patterns []RuntimePathPattern, rel string) bool {
	for _, p := range patterns {
		if p.Match(rel) {
			return true
		}
	}
	return false
}

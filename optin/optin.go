// Package optin decides which tables participate in continuous backup.
package optin

import "regexp"

// Filter reports whether a table should be backed up.
type Filter interface {
	Eligible(tableName string) bool
}

// Func adapts a plain function to a Filter.
type Func func(tableName string) bool

func (f Func) Eligible(tableName string) bool {
	return f(tableName)
}

// All opts every table in.
var All Filter = Func(func(string) bool { return true })

// RegexFilter opts a table in when the pattern matches at the start of its
// name. Any failure to evaluate the pattern opts the table in.
type RegexFilter struct {
	pattern string
	re      *regexp.Regexp
	err     error
}

// Regex builds a RegexFilter; an empty pattern opts every table in.
func Regex(pattern string) *RegexFilter {
	f := &RegexFilter{pattern: pattern}
	if pattern != "" {
		f.re, f.err = regexp.Compile(`^(?:` + pattern + `)`)
	}
	return f
}

// Err returns the error from compiling the pattern, if any.
func (f *RegexFilter) Err() error {
	return f.err
}

func (f *RegexFilter) Pattern() string {
	return f.pattern
}

func (f *RegexFilter) Eligible(tableName string) (eligible bool) {
	defer func() {
		if recover() != nil {
			eligible = true
		}
	}()
	if f == nil || f.pattern == "" || f.err != nil || f.re == nil {
		return true
	}
	return f.re.MatchString(tableName)
}

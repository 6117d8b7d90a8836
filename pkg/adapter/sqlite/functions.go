package sqlite

import (
	"database/sql/driver"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	sqlite "modernc.org/sqlite"
)

// The four custom scalar functions shared with the networked backend.
// SQL written against either backend calls these by name; the
// PostgreSQL adapter emulates them with server-side functions at first
// connect.
const (
	FuncUnicodeLower = "unicode_lower"
	FuncUnicodeUpper = "unicode_upper"
	FuncUnicodeLike  = "unicode_like"
	FuncRegexp       = "regexp"
	FuncNormalise    = "normalise"
)

var registerOnce sync.Once

// registerScalarFunctions registers the shared scalar functions with
// the driver. Registration is driver-global, so it runs once per
// process no matter how many connections open.
func registerScalarFunctions() {
	registerOnce.Do(func() {
		sqlite.MustRegisterDeterministicScalarFunction(FuncUnicodeLower, 1, scalarUnicodeLower)
		sqlite.MustRegisterDeterministicScalarFunction(FuncUnicodeUpper, 1, scalarUnicodeUpper)
		sqlite.MustRegisterDeterministicScalarFunction(FuncUnicodeLike, 2, scalarUnicodeLike)
		sqlite.MustRegisterDeterministicScalarFunction(FuncRegexp, 2, scalarRegexp)
		sqlite.MustRegisterDeterministicScalarFunction(FuncNormalise, 1, scalarNormalise)
	})
}

func scalarUnicodeLower(tls *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	s, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	return cases.Lower(language.Und).String(s), nil
}

func scalarUnicodeUpper(tls *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	s, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	return cases.Upper(language.Und).String(s), nil
}

// scalarUnicodeLike implements unicode_like(pattern, value): `%` matches
// any run of characters, `?` matches exactly one, everything else is
// literal; comparison is case-folded.
func scalarUnicodeLike(tls *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	value, ok := textArg(args[1])
	if !ok {
		return nil, nil
	}

	re, err := compiledPattern(wildcardToRegexp(pattern))
	if err != nil {
		return nil, fmt.Errorf("unicode_like: %w", err)
	}
	return boolValue(re.MatchString(foldCase(value))), nil
}

// scalarRegexp implements the REGEXP operator: `value REGEXP pattern`
// invokes regexp(pattern, value).
func scalarRegexp(tls *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	pattern, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	value, ok := textArg(args[1])
	if !ok {
		return nil, nil
	}

	re, err := compiledPattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("regexp: %w", err)
	}
	return boolValue(re.MatchString(value)), nil
}

func scalarNormalise(tls *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	s, ok := textArg(args[0])
	if !ok {
		return nil, nil
	}
	return Normalise(s), nil
}

// Normalise strips diacritics and case so "Crème Brûlée" and
// "creme brulee" compare equal.
func Normalise(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return cases.Lower(language.Und).String(stripped)
}

func foldCase(s string) string {
	return cases.Lower(language.Und).String(s)
}

// wildcardToRegexp translates a %/? wildcard pattern into an anchored,
// case-folded regular expression.
func wildcardToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteString("(?s)^")
	for _, r := range foldCase(pattern) {
		switch r {
		case '%':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return b.String()
}

// Compiled patterns are cached; SQL tends to reuse a handful of them.
var (
	patternMu    sync.Mutex
	patternCache = make(map[string]*regexp.Regexp)
)

func compiledPattern(pattern string) (*regexp.Regexp, error) {
	patternMu.Lock()
	defer patternMu.Unlock()

	if re, ok := patternCache[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	patternCache[pattern] = re
	return re, nil
}

func textArg(v driver.Value) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

func boolValue(b bool) driver.Value {
	if b {
		return int64(1)
	}
	return int64(0)
}

package mgmt

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrMalformedName is returned (wrapped in *MalformedNameError) when a
// string cannot be parsed as an object name.
var ErrMalformedName = errors.New("malformed object name")

// MalformedNameError describes why a string is not a valid object name.
type MalformedNameError struct {
	Name   string
	Reason string
}

func (e *MalformedNameError) Error() string {
	return fmt.Sprintf("malformed object name %q: %s", e.Name, e.Reason)
}

func (e *MalformedNameError) Unwrap() error { return ErrMalformedName }

// Property is a single key=value pair of an object name.
type Property struct {
	Key   string
	Value string
}

// ObjectName identifies a management object, or a set of objects when it
// contains wildcards.
//
// The textual form is domain:key=value[,key=value...]. The domain and the
// property values may contain the wildcards '*' and '?'. A trailing ",*"
// (or a property list of just "*") matches any additional properties.
//
// The zero value is not a valid name.
type ObjectName struct {
	domain       string
	props        []Property // sorted by key
	propsPattern bool
	valuePattern bool
}

// ParseObjectName parses s into an ObjectName.
func ParseObjectName(s string) (ObjectName, error) {
	malformed := func(reason string) (ObjectName, error) {
		return ObjectName{}, &MalformedNameError{Name: s, Reason: reason}
	}

	if strings.ContainsRune(s, '\n') {
		return malformed("newline not allowed")
	}
	sep := strings.IndexByte(s, ':')
	if sep < 0 {
		return malformed("missing domain separator ':'")
	}

	name := ObjectName{domain: s[:sep]}
	rest := s[sep+1:]
	if rest == "" {
		return malformed("empty key property list")
	}

	seen := make(map[string]struct{})
	for len(rest) > 0 {
		elem, tail, err := nextProperty(rest)
		if err != nil {
			return malformed(err.Error())
		}
		rest = tail

		if elem == "*" {
			if name.propsPattern {
				return malformed("duplicate property list wildcard")
			}
			name.propsPattern = true
			continue
		}

		eq := strings.IndexByte(elem, '=')
		if eq < 0 {
			return malformed(fmt.Sprintf("property %q has no '='", elem))
		}
		key, value := elem[:eq], elem[eq+1:]
		if key == "" {
			return malformed("empty property key")
		}
		if strings.ContainsAny(key, ":,=*?\"") {
			return malformed(fmt.Sprintf("invalid character in key %q", key))
		}
		if value == "" {
			return malformed(fmt.Sprintf("empty value for key %q", key))
		}
		if _, dup := seen[key]; dup {
			return malformed(fmt.Sprintf("duplicate key %q", key))
		}
		seen[key] = struct{}{}

		pattern, err := checkValue(value)
		if err != nil {
			return malformed(err.Error())
		}
		if pattern {
			name.valuePattern = true
		}
		name.props = append(name.props, Property{Key: key, Value: value})
	}

	if len(name.props) == 0 && !name.propsPattern {
		return malformed("empty key property list")
	}

	slices.SortFunc(name.props, func(a, b Property) int { return strings.Compare(a.Key, b.Key) })
	return name, nil
}

// MustParseObjectName is like ParseObjectName but panics on error.
// It is intended for names known at compile time.
func MustParseObjectName(s string) ObjectName {
	n, err := ParseObjectName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// nextProperty splits off the next comma-separated element, honoring
// quoted values.
func nextProperty(s string) (elem, rest string, err error) {
	inQuote := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case inQuote && c == '\\':
			i++
		case c == '"':
			inQuote = !inQuote
		case c == ',' && !inQuote:
			if i == len(s)-1 {
				return "", "", errors.New("trailing ','")
			}
			return s[:i], s[i+1:], nil
		}
	}
	if inQuote {
		return "", "", errors.New("unterminated quoted value")
	}
	return s, "", nil
}

// checkValue validates a property value and reports whether it contains
// an unescaped wildcard.
func checkValue(v string) (pattern bool, err error) {
	if v[0] != '"' {
		if strings.ContainsAny(v, ",=:\"") {
			return false, fmt.Errorf("invalid character in value %q", v)
		}
		return strings.ContainsAny(v, "*?"), nil
	}
	if len(v) < 2 || v[len(v)-1] != '"' {
		return false, fmt.Errorf("invalid quoted value %s", v)
	}
	body := v[1 : len(v)-1]
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '\\':
			i++
		case '*', '?':
			pattern = true
		case '"':
			return false, fmt.Errorf("unescaped quote in value %s", v)
		}
	}
	return pattern, nil
}

// Domain returns the domain part of the name.
func (n ObjectName) Domain() string { return n.domain }

// Property returns the value of key, if present.
func (n ObjectName) Property(key string) (string, bool) {
	for _, p := range n.props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Properties returns the key properties sorted by key.
func (n ObjectName) Properties() []Property { return slices.Clone(n.props) }

// IsZero reports whether n is the zero ObjectName.
func (n ObjectName) IsZero() bool {
	return n.domain == "" && len(n.props) == 0 && !n.propsPattern
}

// IsPattern reports whether n contains any wildcard.
func (n ObjectName) IsPattern() bool {
	return n.IsDomainPattern() || n.propsPattern || n.valuePattern
}

// IsDomainPattern reports whether the domain contains a wildcard.
func (n ObjectName) IsDomainPattern() bool { return strings.ContainsAny(n.domain, "*?") }

// IsPropertyListPattern reports whether n matches additional properties.
func (n ObjectName) IsPropertyListPattern() bool { return n.propsPattern }

// IsPropertyValuePattern reports whether any property value has a wildcard.
func (n ObjectName) IsPropertyValuePattern() bool { return n.valuePattern }

// Canonical returns the canonical string form: the domain, then the key
// properties sorted by key, then ",*" for property list patterns.
func (n ObjectName) Canonical() string {
	var b strings.Builder
	b.WriteString(n.domain)
	b.WriteByte(':')
	for i, p := range n.props {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	if n.propsPattern {
		if len(n.props) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('*')
	}
	return b.String()
}

// String returns the canonical form.
func (n ObjectName) String() string { return n.Canonical() }

// Match reports whether name is selected by n. An exact n matches only
// an equal name. Name itself is expected to be exact.
func (n ObjectName) Match(name ObjectName) bool {
	if !n.IsPattern() {
		return n.Canonical() == name.Canonical()
	}
	if !wildcardMatch(n.domain, name.domain) {
		return false
	}
	if !n.propsPattern && len(n.props) != len(name.props) {
		return false
	}
	for _, p := range n.props {
		v, ok := name.Property(p.Key)
		if !ok {
			return false
		}
		if !wildcardMatch(p.Value, v) {
			return false
		}
	}
	return true
}

// wildcardMatch matches s against pattern where '*' matches any run of
// characters and '?' exactly one.
func wildcardMatch(pattern, s string) bool {
	p, str := []rune(pattern), []rune(s)
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(str) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == str[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}

// SortNames sorts names by canonical form.
func SortNames(names []ObjectName) {
	slices.SortFunc(names, func(a, b ObjectName) int {
		return strings.Compare(a.Canonical(), b.Canonical())
	})
}

package types

import (
	"regexp"

	"lumen/internal/class"
	"lumen/internal/errors"
	"lumen/internal/heap"
	"lumen/internal/value"
)

// Regex wraps a compiled stdlib regexp.Regexp; Green, since compiled
// patterns never reference other heap objects. The subject of the most
// recent match operation is remembered so the regex can be iterated
// (foreach walks the matches found in that subject).
type Regex struct {
	hdr     *heap.Header
	re      *regexp.Regexp
	pattern string
	subject string
}

func CompileRegex(cls *class.Class, line int, pattern string) (*Regex, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, errors.New(errors.RuntimeError, line, "invalid regex %q: %v", pattern, err)
	}
	r := &Regex{re: re, pattern: pattern}
	r.hdr = heap.NewHeader(r, cls, true)
	return r, nil
}

func (r *Regex) Hdr() *heap.Header { return r.hdr }
func (r *Regex) Pattern() string   { return r.pattern }

// Subject returns the string of the most recent match operation.
func (r *Regex) Subject() string { return r.subject }

func (r *Regex) HasMatch(s string) bool {
	r.subject = s
	return r.re.MatchString(s)
}

func (r *Regex) Match(s string) string {
	r.subject = s
	return r.re.FindString(s)
}

func (r *Regex) Count(s string) int {
	r.subject = s
	return len(r.re.FindAllString(s, -1))
}

// Capture returns the full match plus every capturing group for the first
// match, or nil if there is none.
func (r *Regex) Capture(s string) []string {
	r.subject = s
	return r.re.FindStringSubmatch(s)
}

// CaptureAll returns every match's full-plus-group slice.
func (r *Regex) CaptureAll(s string) [][]string {
	r.subject = s
	return r.re.FindAllStringSubmatch(s, -1)
}

// CaptureStart/CaptureEnd return the byte offsets of the Nth match's full
// span (0-indexed), or -1,-1 if there is no such match.
func (r *Regex) CaptureStart(s string, n int) int {
	r.subject = s
	locs := r.re.FindAllStringIndex(s, -1)
	if n < 0 || n >= len(locs) {
		return -1
	}
	return locs[n][0]
}

func (r *Regex) CaptureEnd(s string, n int) int {
	r.subject = s
	locs := r.re.FindAllStringIndex(s, -1)
	if n < 0 || n >= len(locs) {
		return -1
	}
	return locs[n][1]
}

func (r *Regex) Replace(s, repl string) string { return r.re.ReplaceAllString(s, repl) }

func (r *Regex) Split(s string) []string { return r.re.Split(s, -1) }

func toStringRegex(o heap.Object, quote bool) string {
	r := o.(*Regex)
	return "/" + r.pattern + "/"
}

func registerRegexSlots(cls *class.Class) {
	cls.Slots.ToString = value.ToStringFunc(toStringRegex)
}

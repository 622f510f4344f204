package runtime

// Interner is the symbol table for identifier strings, kept as a runtime
// field rather than a package global. Interning makes repeated global-name
// lookups share
// one backing string and gives a stable canonical key for the globals map.
type Interner struct {
	strings map[string]string
}

func NewInterner() *Interner {
	return &Interner{strings: map[string]string{}}
}

// Intern returns the canonical copy of s, storing it on first sight.
func (in *Interner) Intern(s string) string {
	if canon, ok := in.strings[s]; ok {
		return canon
	}
	in.strings[s] = s
	return s
}

// Size reports how many distinct symbols have been interned.
func (in *Interner) Size() int { return len(in.strings) }

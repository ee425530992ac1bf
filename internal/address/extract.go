package address

import "strings"

// Checker reports whether candidate is a well-formed address for the
// given network address type.
type Checker func(candidate string, network uint16) bool

// Extractor pulls a candidate address out of a chat command.
type Extractor struct {
	tokens  []string
	network uint16
	check   Checker
}

// NewExtractor returns an Extractor that strips tokens from the input and
// validates the remainder with check. A nil check falls back to Valid.
func NewExtractor(tokens []string, network uint16, check Checker) *Extractor {
	if check == nil {
		check = Valid
	}
	return &Extractor{
		tokens:  append([]string(nil), tokens...),
		network: network,
		check:   check,
	}
}

// Extract removes every known command token and surrounding whitespace
// from raw and returns the remainder if the checker accepts it.
func (e *Extractor) Extract(raw string) (string, bool) {
	candidate := raw
	for _, tok := range e.tokens {
		if tok == "" {
			continue
		}
		candidate = strings.ReplaceAll(candidate, tok, "")
	}
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || !e.check(candidate, e.network) {
		return "", false
	}
	return candidate, true
}

// Network is the address type the extractor validates against.
func (e *Extractor) Network() uint16 { return e.network }

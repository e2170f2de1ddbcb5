package parsing

import "fmt"

// Parser extracts a ParsedStatement from one bank's PDF layout.
type Parser interface {
	// BankCode returns the identifier this parser handles (e.g. "itau").
	BankCode() string

	// CanParse reports whether the extracted PDF text looks like this
	// bank's statement layout.
	CanParse(text string) bool

	// Parse extracts the statement header and line items from the PDF.
	Parse(pdfData []byte, fileName string) (*ParsedStatement, error)
}

// Registry resolves parsers by bank code.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry pre-loaded with the built-in bank parsers.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(NewItau())
	return r
}

// Register adds a parser, replacing any previous parser for the same bank.
func (r *Registry) Register(p Parser) {
	r.parsers[p.BankCode()] = p
}

// ForBank returns the parser for the given bank code.
func (r *Registry) ForBank(code string) (Parser, error) {
	p, ok := r.parsers[code]
	if !ok {
		return nil, fmt.Errorf("no statement parser registered for bank %q", code)
	}
	return p, nil
}

// SupportedBanks lists the registered bank codes.
func (r *Registry) SupportedBanks() []string {
	codes := make([]string, 0, len(r.parsers))
	for code := range r.parsers {
		codes = append(codes, code)
	}
	return codes
}

package parsing

import "fmt"

// LineItemType classifies a statement row.
type LineItemType string

const (
	TypePurchase LineItemType = "purchase"
	TypePayment  LineItemType = "payment"
	TypeFee      LineItemType = "fee"
	TypeInterest LineItemType = "interest"
	TypeReversal LineItemType = "reversal"
)

// ParsedLineItem is one transaction-like row extracted from a statement PDF.
// Dates are ISO YYYY-MM-DD strings; amounts are decimal strings with exactly
// two fraction digits and may be negative for reversals.
type ParsedLineItem struct {
	Date        string       `json:"date"`
	Description string       `json:"description"`
	Amount      string       `json:"amount"`
	Type        LineItemType `json:"type"`
	Category    string       `json:"category,omitempty"` // raw bank-provided label
}

// ParsedStatement is the header plus ordered line items extracted from one
// statement PDF. All monetary totals are non-negative decimal strings.
type ParsedStatement struct {
	BankCode         string           `json:"bank_code"`
	StatementDate    string           `json:"statement_date"`
	DueDate          string           `json:"due_date"`
	PreviousBalance  string           `json:"previous_balance"`
	PaymentsReceived string           `json:"payments_received"`
	Purchases        string           `json:"purchases"`
	Fees             string           `json:"fees"`
	Interest         string           `json:"interest"`
	TotalAmount      string           `json:"total_amount"`
	LineItems        []ParsedLineItem `json:"line_items"`
}

// ParseError reports a failure to extract a statement from a PDF, carrying
// the bank code and file name for caller-facing messages.
type ParseError struct {
	BankCode string
	FileName string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s statement %q: %v", e.BankCode, e.FileName, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

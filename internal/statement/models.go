package statement

import (
	"time"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// Status is the lifecycle state of an uploaded statement.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReviewed  Status = "reviewed"
	StatusImported  Status = "imported"
	StatusCancelled Status = "cancelled"
)

// CreditCard is a user's credit card. Monetary fields are decimal strings
// with two fraction digits.
type CreditCard struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Name        string    `json:"name"`
	Limit       string    `json:"limit"`
	CurrentBill string    `json:"current_bill"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Category is a user's spending category.
type Category struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // "expense", "income" or "both"
	CreatedAt time.Time `json:"created_at"`
}

// Transaction is one persisted transaction, created at import time from a
// statement line item.
type Transaction struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	CreditCardID string    `json:"credit_card_id"`
	CategoryID   string    `json:"category_id,omitempty"`
	Description  string    `json:"description"`
	Amount       string    `json:"amount"`
	Type         string    `json:"type"`
	Date         string    `json:"date"` // ISO YYYY-MM-DD
	CreatedAt    time.Time `json:"created_at"`
}

// CreditCardStatement is one uploaded statement, owned by exactly one credit
// card and one user. Only the orchestrator mutates its status, and never
// after it reaches imported or cancelled.
type CreditCardStatement struct {
	ID               string     `json:"id"`
	CreditCardID     string     `json:"credit_card_id"`
	OwnerID          string     `json:"owner_id"`
	BankCode         string     `json:"bank_code"`
	StatementDate    string     `json:"statement_date"`
	DueDate          string     `json:"due_date"`
	PreviousBalance  string     `json:"previous_balance"`
	PaymentsReceived string     `json:"payments_received"`
	Purchases        string     `json:"purchases"`
	Fees             string     `json:"fees"`
	Interest         string     `json:"interest"`
	TotalAmount      string     `json:"total_amount"`
	FileName         string     `json:"file_name"`
	FileHash         string     `json:"file_hash"` // SHA-256 of the uploaded PDF
	FilePath         string     `json:"file_path"` // key into statement file storage
	Status           Status     `json:"status"`
	ImportedAt       *time.Time `json:"imported_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// StatementLineItem is one row of a statement plus its annotations.
// TransactionID is set if and only if the parent statement was imported and
// this item was included.
type StatementLineItem struct {
	ID                  string               `json:"id"`
	StatementID         string               `json:"statement_id"`
	Position            int                  `json:"position"` // order within the statement
	Date                string               `json:"date"`
	Description         string               `json:"description"`
	Amount              string               `json:"amount"`
	Type                parsing.LineItemType `json:"type"`
	Category            string               `json:"category,omitempty"` // raw bank label
	IsDuplicate         bool                 `json:"is_duplicate"`
	DuplicateReason     string               `json:"duplicate_reason,omitempty"`
	SuggestedCategoryID string               `json:"suggested_category_id,omitempty"`
	FinalCategoryID     string               `json:"final_category_id,omitempty"`
	TransactionID       string               `json:"transaction_id,omitempty"`
	CreatedAt           time.Time            `json:"created_at"`
}

// StatementWithLineItems is a statement plus its annotated line items, the
// shape served by the detail endpoint.
type StatementWithLineItems struct {
	CreditCardStatement
	LineItems []*StatementLineItem `json:"line_items"`
}

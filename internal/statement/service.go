package statement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/TiagoAMarek/finances-sub002/internal/categorize"
	"github.com/TiagoAMarek/finances-sub002/internal/match"
	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// maxUploadSize bounds uploaded statement PDFs.
const maxUploadSize = 10 << 20 // 10MB

// IDGenerator generates unique IDs for persisted entities.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (g *uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (t *defaultTimeSource) Now() time.Time {
	return time.Now()
}

// ParserRegistry resolves a bank statement parser by bank code.
type ParserRegistry interface {
	ForBank(code string) (parsing.Parser, error)
}

// Service is the statement import orchestrator: it ingests uploaded PDFs as
// pending statements, annotates their line items with duplicate and category
// metadata, and imports reviewed line items as transactions.
type Service struct {
	db          DB
	storage     Storage
	parsers     ParserRegistry
	detector    *match.Detector
	categorizer categorize.Categorizer
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a Service with the default ID generator and time source.
func NewService(db DB, storage Storage, parsers ParserRegistry, categorizer categorize.Categorizer) *Service {
	return NewServiceWithDeps(db, storage, parsers, categorizer, &uuidGenerator{}, &defaultTimeSource{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(db DB, storage Storage, parsers ParserRegistry, categorizer categorize.Categorizer, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		storage:     storage,
		parsers:     parsers,
		detector:    match.NewDetector(&transactionFinder{db: db}),
		categorizer: categorizer,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// transactionFinder adapts DB to the duplicate detector's lookup interface.
type transactionFinder struct {
	db DB
}

func (f *transactionFinder) FindTransactions(_ context.Context, ownerID, creditCardID, startDate, endDate string) ([]match.ExistingTransaction, error) {
	txns, err := f.db.FindTransactions(ownerID, creditCardID, startDate, endDate)
	if err != nil {
		return nil, err
	}
	existing := make([]match.ExistingTransaction, len(txns))
	for i, t := range txns {
		existing[i] = match.ExistingTransaction{
			ID:          t.ID,
			Date:        t.Date,
			Description: t.Description,
			Amount:      t.Amount,
		}
	}
	return existing, nil
}

// UploadRequest is the ingest input: one statement PDF for one card.
type UploadRequest struct {
	OwnerID      string
	CreditCardID string
	BankCode     string
	FileName     string
	FileData     []byte
}

// UploadStatement persists an uploaded PDF as a pending statement. A file
// whose hash matches a prior upload for the same card is rejected with
// ErrDuplicateUpload; nothing is persisted on failure.
func (s *Service) UploadStatement(ctx context.Context, req UploadRequest) (*CreditCardStatement, error) {
	if err := validateUpload(req); err != nil {
		return nil, err
	}

	if _, err := s.parsers.ForBank(req.BankCode); err != nil {
		return nil, fmt.Errorf("unsupported bank %q: %w", req.BankCode, ErrInvalidStatement)
	}

	card, err := s.db.GetCreditCard(req.OwnerID, req.CreditCardID)
	if err != nil {
		return nil, fmt.Errorf("getting credit card: %w", err)
	}

	sum := sha256.Sum256(req.FileData)
	fileHash := hex.EncodeToString(sum[:])

	if _, err := s.db.FindStatementByFileHash(req.OwnerID, card.ID, fileHash); err == nil {
		return nil, ErrDuplicateUpload
	}

	id := s.idGenerator.Generate()
	now := s.timeSource.Now()

	savedPath, err := s.storage.Save(fmt.Sprintf("%s_%s", id, req.FileName), req.FileData)
	if err != nil {
		return nil, fmt.Errorf("saving statement file: %w", err)
	}

	st := &CreditCardStatement{
		ID:           id,
		CreditCardID: card.ID,
		OwnerID:      req.OwnerID,
		BankCode:     req.BankCode,
		// Header fields are placeholders until annotation parses the PDF.
		StatementDate:    "1970-01-01",
		DueDate:          "1970-01-01",
		PreviousBalance:  "0.00",
		PaymentsReceived: "0.00",
		Purchases:        "0.00",
		Fees:             "0.00",
		Interest:         "0.00",
		TotalAmount:      "0.00",
		FileName:         req.FileName,
		FileHash:         fileHash,
		FilePath:         savedPath,
		Status:           StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.db.SaveStatement(st); err != nil {
		s.storage.Delete(savedPath)
		return nil, fmt.Errorf("saving statement: %w", err)
	}

	return st, nil
}

func validateUpload(req UploadRequest) error {
	switch {
	case req.CreditCardID == "":
		return fmt.Errorf("credit card id is required: %w", ErrInvalidStatement)
	case req.BankCode == "":
		return fmt.Errorf("bank code is required: %w", ErrInvalidStatement)
	case req.FileName == "":
		return fmt.Errorf("file name is required: %w", ErrInvalidStatement)
	case strings.ContainsAny(req.FileName, `/\`) || strings.Contains(req.FileName, ".."):
		return fmt.Errorf("file name contains invalid characters: %w", ErrInvalidStatement)
	case len(req.FileData) == 0:
		return fmt.Errorf("file data is required: %w", ErrInvalidStatement)
	case len(req.FileData) > maxUploadSize:
		return fmt.Errorf("file exceeds %d bytes: %w", maxUploadSize, ErrInvalidStatement)
	}
	return nil
}

// AnnotateResult summarizes one annotation run.
type AnnotateResult struct {
	Statement        *CreditCardStatement `json:"statement"`
	DuplicateSummary match.Summary        `json:"duplicate_summary"`
	Categorized      int                  `json:"categorized"`
	TotalLineItems   int                  `json:"total_line_items"`
}

// AnnotateStatement parses the stored PDF and writes annotated line items:
// every row gets a duplicate verdict, and rows not flagged as duplicates get
// an AI category suggestion. Re-running recomputes annotations from scratch.
// Detector and categorizer failures degrade to safe defaults and never fail
// the annotation itself.
func (s *Service) AnnotateStatement(ctx context.Context, ownerID, statementID string) (*AnnotateResult, error) {
	st, err := s.db.GetStatement(ownerID, statementID)
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}

	if st.Status != StatusPending && st.Status != StatusReviewed {
		return nil, fmt.Errorf("statement %s is %s and cannot be annotated: %w", st.ID, st.Status, ErrConflict)
	}

	pdfData, err := s.storage.Get(st.FilePath)
	if err != nil {
		return nil, fmt.Errorf("reading statement file: %w", err)
	}

	parser, err := s.parsers.ForBank(st.BankCode)
	if err != nil {
		return nil, fmt.Errorf("resolving parser: %w", err)
	}

	parsed, err := parser.Parse(pdfData, st.FileName)
	if err != nil {
		return nil, fmt.Errorf("parsing statement: %w", err)
	}

	detections := s.detector.DetectBatch(ctx, parsed.LineItems, st.CreditCardID, ownerID)

	// Categorize only rows not flagged as duplicates; they are excluded
	// from import by default, so suggestions for them are wasted calls.
	var toCategorize []parsing.ParsedLineItem
	var toCategorizeIdx []int
	for i, d := range detections {
		if !d.IsDuplicate {
			toCategorize = append(toCategorize, parsed.LineItems[i])
			toCategorizeIdx = append(toCategorizeIdx, i)
		}
	}

	suggestions := make([]categorize.Result, len(parsed.LineItems))
	if len(toCategorize) > 0 {
		categories, err := s.listCategorizerCategories(ownerID)
		if err != nil {
			slog.Warn("Listing categories failed; categorization degraded", "error", err)
			categories = nil
		}
		for i, r := range s.categorizer.CategorizeBatch(ctx, toCategorize, categories) {
			suggestions[toCategorizeIdx[i]] = r
		}
	}

	now := s.timeSource.Now()
	items := make([]*StatementLineItem, len(parsed.LineItems))
	for i, li := range parsed.LineItems {
		item := &StatementLineItem{
			ID:          s.idGenerator.Generate(),
			StatementID: st.ID,
			Position:    i,
			Date:        li.Date,
			Description: li.Description,
			Amount:      li.Amount,
			Type:        li.Type,
			Category:    li.Category,
			IsDuplicate: detections[i].IsDuplicate,
			CreatedAt:   now,
		}
		if detections[i].IsDuplicate && detections[i].BestMatch != nil {
			item.DuplicateReason = detections[i].BestMatch.Reason
		}
		item.SuggestedCategoryID = suggestions[i].SuggestedCategoryID
		items[i] = item
	}

	st.StatementDate = parsed.StatementDate
	st.DueDate = parsed.DueDate
	st.PreviousBalance = parsed.PreviousBalance
	st.PaymentsReceived = parsed.PaymentsReceived
	st.Purchases = parsed.Purchases
	st.Fees = parsed.Fees
	st.Interest = parsed.Interest
	st.TotalAmount = parsed.TotalAmount
	st.Status = StatusReviewed
	st.UpdatedAt = now

	if err := s.db.SaveAnnotation(st, items); err != nil {
		return nil, fmt.Errorf("saving annotation: %w", err)
	}

	categorized := 0
	for _, item := range items {
		if item.SuggestedCategoryID != "" {
			categorized++
		}
	}

	return &AnnotateResult{
		Statement:        st,
		DuplicateSummary: s.detector.GetSummary(detections),
		Categorized:      categorized,
		TotalLineItems:   len(items),
	}, nil
}

func (s *Service) listCategorizerCategories(ownerID string) ([]categorize.Category, error) {
	stored, err := s.db.ListCategories(ownerID)
	if err != nil {
		return nil, err
	}
	categories := make([]categorize.Category, len(stored))
	for i, c := range stored {
		categories[i] = categorize.Category{ID: c.ID, Name: c.Name, Type: c.Type}
	}
	return categories, nil
}

// LineItemUpdate is one caller override applied before import.
type LineItemUpdate struct {
	ID              string `json:"id"`
	FinalCategoryID string `json:"final_category_id,omitempty"`
	IsDuplicate     *bool  `json:"is_duplicate,omitempty"`
}

// ImportOptions controls which line items become transactions.
type ImportOptions struct {
	UpdateCurrentBill  bool             `json:"update_current_bill"`
	ExcludeLineItemIDs []string         `json:"exclude_line_item_ids"`
	LineItemUpdates    []LineItemUpdate `json:"line_item_updates"`
}

// ImportResult reports what one import created.
type ImportResult struct {
	StatementID           string   `json:"statement_id"`
	CreatedTransactionIDs []string `json:"created_transaction_ids"`
	SkippedLineItemIDs    []string `json:"skipped_line_item_ids"`
	UpdatedCurrentBill    bool     `json:"updated_current_bill"`
	NewCurrentBill        string   `json:"new_current_bill,omitempty"`
}

// ImportStatement turns a reviewed statement's included line items into
// transactions. Duplicate-flagged and caller-excluded items are skipped; the
// rest each become an expense transaction (reversals keep their negative
// amount and net out downstream). The commit is atomic: all transactions,
// line-item links and the status flip land together or not at all, and a
// concurrent import of the same statement loses with ErrConflict.
func (s *Service) ImportStatement(ctx context.Context, ownerID, statementID string, opts ImportOptions) (*ImportResult, error) {
	st, err := s.db.GetStatement(ownerID, statementID)
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}

	if st.Status != StatusReviewed {
		return nil, fmt.Errorf("statement %s is %s, not reviewed: %w", st.ID, st.Status, ErrConflict)
	}

	items, err := s.db.ListLineItems(st.ID)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("statement %s has no line items: %w", st.ID, ErrInvalidStatement)
	}

	updates := make(map[string]LineItemUpdate, len(opts.LineItemUpdates))
	for _, u := range opts.LineItemUpdates {
		updates[u.ID] = u
	}
	excluded := make(map[string]bool, len(opts.ExcludeLineItemIDs))
	for _, id := range opts.ExcludeLineItemIDs {
		excluded[id] = true
	}

	now := s.timeSource.Now()
	var (
		txns       []*Transaction
		createdIDs []string
		skippedIDs []string
		total      = decimal.Zero
	)

	for _, item := range items {
		if u, ok := updates[item.ID]; ok {
			if u.FinalCategoryID != "" {
				item.FinalCategoryID = u.FinalCategoryID
			}
			if u.IsDuplicate != nil {
				item.IsDuplicate = *u.IsDuplicate
			}
		}

		if excluded[item.ID] || item.IsDuplicate {
			skippedIDs = append(skippedIDs, item.ID)
			continue
		}

		categoryID := item.FinalCategoryID
		if categoryID == "" {
			categoryID = item.SuggestedCategoryID
		}

		amount, err := decimal.NewFromString(item.Amount)
		if err != nil {
			return nil, fmt.Errorf("line item %s has invalid amount %q: %w", item.ID, item.Amount, ErrInvalidStatement)
		}

		txn := &Transaction{
			ID:           s.idGenerator.Generate(),
			OwnerID:      ownerID,
			CreditCardID: st.CreditCardID,
			CategoryID:   categoryID,
			Description:  item.Description,
			Amount:       item.Amount,
			Type:         "expense",
			Date:         item.Date,
			CreatedAt:    now,
		}
		item.FinalCategoryID = categoryID
		item.TransactionID = txn.ID

		txns = append(txns, txn)
		createdIDs = append(createdIDs, txn.ID)
		total = total.Add(amount)
	}

	if len(txns) == 0 {
		return nil, fmt.Errorf("no line items left to import: %w", ErrInvalidStatement)
	}

	var card *CreditCard
	newCurrentBill := ""
	if opts.UpdateCurrentBill {
		card, err = s.db.GetCreditCard(ownerID, st.CreditCardID)
		if err != nil {
			return nil, fmt.Errorf("getting credit card: %w", err)
		}
		bill, err := decimal.NewFromString(card.CurrentBill)
		if err != nil {
			bill = decimal.Zero
		}
		card.CurrentBill = bill.Add(total).StringFixed(2)
		card.UpdatedAt = now
		newCurrentBill = card.CurrentBill
	}

	importedAt := now
	st.Status = StatusImported
	st.ImportedAt = &importedAt
	st.UpdatedAt = now

	if err := s.db.CommitImport(st, items, txns, card); err != nil {
		return nil, fmt.Errorf("committing import: %w", err)
	}

	return &ImportResult{
		StatementID:           st.ID,
		CreatedTransactionIDs: createdIDs,
		SkippedLineItemIDs:    skippedIDs,
		UpdatedCurrentBill:    opts.UpdateCurrentBill,
		NewCurrentBill:        newCurrentBill,
	}, nil
}

// CancelStatement discards a statement that has not been imported yet.
func (s *Service) CancelStatement(ownerID, statementID string) (*CreditCardStatement, error) {
	st, err := s.db.GetStatement(ownerID, statementID)
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}

	if st.Status != StatusPending && st.Status != StatusReviewed {
		return nil, fmt.Errorf("statement %s is %s and cannot be cancelled: %w", st.ID, st.Status, ErrConflict)
	}

	st.Status = StatusCancelled
	st.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveStatement(st); err != nil {
		return nil, fmt.Errorf("saving statement: %w", err)
	}

	return st, nil
}

// GetStatementDetails returns a statement with its annotated line items.
func (s *Service) GetStatementDetails(ownerID, statementID string) (*StatementWithLineItems, error) {
	st, err := s.db.GetStatement(ownerID, statementID)
	if err != nil {
		return nil, fmt.Errorf("getting statement: %w", err)
	}

	items, err := s.db.ListLineItems(st.ID)
	if err != nil {
		return nil, fmt.Errorf("listing line items: %w", err)
	}

	return &StatementWithLineItems{
		CreditCardStatement: *st,
		LineItems:           items,
	}, nil
}

// ListStatements returns an owner's statements, newest first.
func (s *Service) ListStatements(ownerID string, filter StatementFilter) ([]*CreditCardStatement, error) {
	statements, err := s.db.ListStatements(ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing statements: %w", err)
	}
	return statements, nil
}

// CreateCreditCard registers a credit card for an owner. Card management
// proper belongs to the surrounding finance app; this exists so the service
// can run standalone.
func (s *Service) CreateCreditCard(ownerID, name, limit string) (*CreditCard, error) {
	if name == "" {
		return nil, fmt.Errorf("card name is required: %w", ErrInvalidStatement)
	}
	now := s.timeSource.Now()
	card := &CreditCard{
		ID:          s.idGenerator.Generate(),
		OwnerID:     ownerID,
		Name:        name,
		Limit:       limit,
		CurrentBill: "0.00",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.SaveCreditCard(card); err != nil {
		return nil, fmt.Errorf("saving credit card: %w", err)
	}
	return card, nil
}

// CreateCategory registers a spending category for an owner.
func (s *Service) CreateCategory(ownerID, name, categoryType string) (*Category, error) {
	if name == "" {
		return nil, fmt.Errorf("category name is required: %w", ErrInvalidStatement)
	}
	category := &Category{
		ID:        s.idGenerator.Generate(),
		OwnerID:   ownerID,
		Name:      name,
		Type:      categoryType,
		CreatedAt: s.timeSource.Now(),
	}
	if err := s.db.SaveCategory(category); err != nil {
		return nil, fmt.Errorf("saving category: %w", err)
	}
	return category, nil
}

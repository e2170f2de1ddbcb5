package match

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TiagoAMarek/finances-sub002/internal/parsing"
)

// Scoring weights and thresholds for duplicate detection. Amount carries the
// most weight and gets no partial credit: an amount mismatch is the strongest
// signal that two rows are different purchases.
const (
	scoreExactDate    = 0.30
	scoreAdjacentDate = 0.15
	scoreNearbyDate   = 0.05

	scoreExactAmount = 0.40

	scoreVerySimilarDesc   = 0.30
	scoreSimilarDesc       = 0.20
	scorePartlySimilarDesc = 0.10

	// Candidates below matchFloor are discarded; the top candidate must
	// clear duplicateThreshold for the line item to be flagged.
	matchFloor         = 0.6
	duplicateThreshold = 0.8

	// Posting dates drift a few days between banks; search this many days
	// on either side of the line item's date.
	dateWindowDays = 3
)

var amountTolerance = decimal.New(1, -2) // 0.01

// ExistingTransaction is the slice of a recorded transaction the detector
// needs for matching.
type ExistingTransaction struct {
	ID          string
	Date        string // ISO YYYY-MM-DD
	Description string
	Amount      string // decimal string
}

// TransactionFinder looks up recorded transactions for a credit card within
// an inclusive date range.
type TransactionFinder interface {
	FindTransactions(ctx context.Context, ownerID, creditCardID, startDate, endDate string) ([]ExistingTransaction, error)
}

// MatchedFields records which fields contributed to a duplicate match.
type MatchedFields struct {
	Date                  bool    `json:"date"`
	Amount                bool    `json:"amount"`
	Description           bool    `json:"description"`
	DescriptionSimilarity float64 `json:"description_similarity"`
}

// DuplicateMatch scores one existing transaction against a parsed line item.
type DuplicateMatch struct {
	ExistingTransactionID string        `json:"existing_transaction_id"`
	Confidence            float64       `json:"confidence"`
	Reason                string        `json:"reason"`
	MatchedFields         MatchedFields `json:"matched_fields"`
}

// DetectionResult is the duplicate verdict for one line item.
type DetectionResult struct {
	LineItem    parsing.ParsedLineItem `json:"line_item"`
	IsDuplicate bool                   `json:"is_duplicate"`
	Matches     []DuplicateMatch       `json:"matches"`
	BestMatch   *DuplicateMatch        `json:"best_match,omitempty"`
}

// Summary partitions a batch of detection results.
type Summary struct {
	Total              int `json:"total"`
	Duplicates         int `json:"duplicates"`
	PossibleDuplicates int `json:"possible_duplicates"`
	Unique             int `json:"unique"`
}

// Detector scores parsed line items against recorded transactions to flag
// rows that were already imported. Detection is advisory: any lookup failure
// degrades to "not a duplicate" so it can never block the import pipeline.
type Detector struct {
	finder TransactionFinder
}

// NewDetector creates a Detector backed by the given transaction lookup.
func NewDetector(finder TransactionFinder) *Detector {
	return &Detector{finder: finder}
}

// DetectBatch runs DetectSingle over each item. Lookups are independent
// reads, so they run concurrently; results come back in input order.
func (d *Detector) DetectBatch(ctx context.Context, items []parsing.ParsedLineItem, creditCardID, ownerID string) []DetectionResult {
	results := make([]DetectionResult, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item parsing.ParsedLineItem) {
			defer wg.Done()
			results[i] = d.DetectSingle(ctx, item, creditCardID, ownerID)
		}(i, item)
	}
	wg.Wait()

	return results
}

// DetectSingle scores one line item against the card's transaction history
// within ±3 days of the item's date.
func (d *Detector) DetectSingle(ctx context.Context, item parsing.ParsedLineItem, creditCardID, ownerID string) DetectionResult {
	safe := DetectionResult{LineItem: item}

	itemDate, err := time.Parse("2006-01-02", item.Date)
	if err != nil {
		slog.Warn("Duplicate detection skipped: invalid line item date", "date", item.Date, "error", err)
		return safe
	}

	start := itemDate.AddDate(0, 0, -dateWindowDays).Format("2006-01-02")
	end := itemDate.AddDate(0, 0, dateWindowDays).Format("2006-01-02")

	existing, err := d.finder.FindTransactions(ctx, ownerID, creditCardID, start, end)
	if err != nil {
		slog.Warn("Duplicate detection query failed", "credit_card_id", creditCardID, "error", err)
		return safe
	}

	var matches []DuplicateMatch
	for _, tx := range existing {
		m := evaluateMatch(item, tx)
		if m.Confidence >= matchFloor {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})

	result := DetectionResult{LineItem: item, Matches: matches}
	if len(matches) > 0 {
		best := matches[0]
		result.BestMatch = &best
		result.IsDuplicate = best.Confidence >= duplicateThreshold
	}

	return result
}

// GetSummary partitions results into duplicates, possible duplicates (best
// match scored in [0.6, 0.8)) and unique items.
func (d *Detector) GetSummary(results []DetectionResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.IsDuplicate:
			s.Duplicates++
		case r.BestMatch != nil && r.BestMatch.Confidence >= matchFloor:
			s.PossibleDuplicates++
		default:
			s.Unique++
		}
	}
	return s
}

func evaluateMatch(item parsing.ParsedLineItem, tx ExistingTransaction) DuplicateMatch {
	var (
		score   float64
		reasons []string
		fields  MatchedFields
	)

	// Date: exact match scores full weight, nearby dates partial credit.
	if item.Date == tx.Date {
		fields.Date = true
		score += scoreExactDate
		reasons = append(reasons, "mesma data")
	} else if days, ok := daysBetween(item.Date, tx.Date); ok {
		if days <= 1 {
			score += scoreAdjacentDate
			reasons = append(reasons, "data próxima")
		} else if days <= dateWindowDays {
			score += scoreNearbyDate
		}
	}

	// Amount: exact within a cent or nothing.
	if amountsEqual(item.Amount, tx.Amount) {
		fields.Amount = true
		score += scoreExactAmount
		reasons = append(reasons, "mesmo valor")
	}

	similarity := FuzzySimilarity(item.Description, tx.Description, true)
	fields.DescriptionSimilarity = similarity
	switch {
	case similarity >= 0.9:
		fields.Description = true
		score += scoreVerySimilarDesc
		reasons = append(reasons, "descrição muito similar")
	case similarity >= 0.7:
		fields.Description = true
		score += scoreSimilarDesc
		reasons = append(reasons, "descrição similar")
	case similarity >= 0.5:
		score += scorePartlySimilarDesc
		reasons = append(reasons, "descrição parcialmente similar")
	}

	reason := "baixa similaridade"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, ", ")
	}

	return DuplicateMatch{
		ExistingTransactionID: tx.ID,
		Confidence:            clamp01(score),
		Reason:                reason,
		MatchedFields:         fields,
	}
}

func daysBetween(a, b string) (int, bool) {
	ta, err := time.Parse("2006-01-02", a)
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse("2006-01-02", b)
	if err != nil {
		return 0, false
	}
	days := int(ta.Sub(tb).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}

func amountsEqual(a, b string) bool {
	da, err := decimal.NewFromString(a)
	if err != nil {
		return false
	}
	db, err := decimal.NewFromString(b)
	if err != nil {
		return false
	}
	return da.Sub(db).Abs().LessThan(amountTolerance)
}

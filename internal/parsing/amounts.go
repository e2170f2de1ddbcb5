package parsing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// formatAmount normalizes a Brazilian-formatted amount ("1.234,56", optional
// "R$" prefix) into a plain decimal string with two fraction digits.
func formatAmount(raw string) (string, error) {
	cleaned := strings.NewReplacer("R$", "", " ", "", " ", "").Replace(raw)

	// Brazilian format: "." is the thousands separator, "," the decimal one.
	if strings.Contains(cleaned, ",") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", raw, err)
	}

	return d.StringFixed(2), nil
}

// parseStatementDate converts DD/MM/YYYY, or DD/MM with an explicit year,
// into an ISO YYYY-MM-DD string.
func parseStatementDate(raw string, year int) (string, error) {
	parts := strings.Split(raw, "/")
	switch len(parts) {
	case 3:
		t, err := time.Parse("02/01/2006", raw)
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return t.Format("2006-01-02"), nil
	case 2:
		if year == 0 {
			return "", fmt.Errorf("date %q has no year", raw)
		}
		t, err := time.Parse("02/01/2006", fmt.Sprintf("%s/%d", raw, year))
		if err != nil {
			return "", fmt.Errorf("invalid date %q: %w", raw, err)
		}
		return t.Format("2006-01-02"), nil
	default:
		return "", fmt.Errorf("invalid date format %q", raw)
	}
}

// yearOf extracts the year from an ISO date, falling back to the current
// year. Transaction rows carry only day and month.
func yearOf(isoDate string) int {
	t, err := time.Parse("2006-01-02", isoDate)
	if err != nil {
		return time.Now().Year()
	}
	return t.Year()
}

package parsing

import (
	"fmt"
	"regexp"
	"strings"
)

// Itau parses Itaú credit card statement PDFs.
type Itau struct{}

// NewItau creates the Itaú statement parser.
func NewItau() *Itau {
	return &Itau{}
}

func (p *Itau) BankCode() string {
	return "itau"
}

var (
	itauEmissao    = regexp.MustCompile(`Emissão:\s*(\d{2}/\d{2}/\d{4})`)
	itauPostagem   = regexp.MustCompile(`Postagem:\s*(\d{2}/\d{2}/\d{4})`)
	itauVencimento = regexp.MustCompile(`Vencimento:\s*(\d{2}/\d{2}/\d{4})`)

	itauPreviousBalance = regexp.MustCompile(`Total da fatura anterior\s+(\d+[.,\s]*\d*,\d{2})`)
	itauPayments        = regexp.MustCompile(`(?i)Pagamento(?:s)? efetuado(?:s)?[^\d]*-?\s*(\d+[.,\s]*\d*,\d{2})`)
	itauPurchases       = regexp.MustCompile(`(?i)(?:Lançamentos atuais|Total dos lançamentos atuais)\s+(\d+[.,\s]*\d*,\d{2})`)
	itauInterest        = regexp.MustCompile(`(?i)Juros(?:\s+do)?\s+rotativo[^\d]*(\d+[.,\s]*\d*,\d{2})`)
	itauTotal           = regexp.MustCompile(`(?i)Total desta fatura\s+(\d+[.,\s]*\d*,\d{2})`)
	itauTotalAlt        = regexp.MustCompile(`(?i)O total da sua fatura é:\s*R\$\s*(\d+[.,\s]*\d*,\d{2})`)

	// Transaction rows look like "DD/MM ESTABLISHMENT 1.234,56".
	itauLine = regexp.MustCompile(`(\d{2}/\d{2})\s+(.+?)\s+(?:R\$\s*)?(\d{1,3}(?:[.,\s]*\d{3})*,\d{2})`)

	itauLocationNoise = regexp.MustCompile(`(?i)PORTO\s*ALE\s*G[A-Z]*\s*(?:BR)?|SAO\s*PAU\s*LO\s*(?:BR)?|ELDOR\s*ADO\s*DO\s*S|(?:BR|BR A|PO RT|PO RTO|SA O)\s*$`)
	itauCategoryNoise = regexp.MustCompile(`(?i)\b(?:restaurante|supermercado|outro\s*s|lazer|saúde|serviços|vestuário)\b`)
	itauSpaces        = regexp.MustCompile(`\s+`)
)

func (p *Itau) CanParse(text string) bool {
	return strings.Contains(text, "Itaú") ||
		strings.Contains(text, "ITAU") ||
		strings.Contains(text, "Itau Cartões") ||
		strings.Contains(text, "Total desta fatura")
}

func (p *Itau) Parse(pdfData []byte, fileName string) (*ParsedStatement, error) {
	text, err := extractText(pdfData)
	if err != nil {
		return nil, &ParseError{BankCode: p.BankCode(), FileName: fileName, Err: err}
	}
	st, err := p.parseText(text)
	if err != nil {
		return nil, &ParseError{BankCode: p.BankCode(), FileName: fileName, Err: err}
	}
	return st, nil
}

func (p *Itau) parseText(text string) (*ParsedStatement, error) {
	if !p.CanParse(text) {
		return nil, fmt.Errorf("document does not look like an Itaú statement")
	}

	statementDate, err := p.statementDate(text)
	if err != nil {
		return nil, err
	}

	dueDate, err := firstRequiredDate(itauVencimento, text, "due date")
	if err != nil {
		return nil, err
	}

	totalAmount, err := p.totalAmount(text)
	if err != nil {
		return nil, err
	}

	st := &ParsedStatement{
		BankCode:         p.BankCode(),
		StatementDate:    statementDate,
		DueDate:          dueDate,
		PreviousBalance:  optionalAmount(itauPreviousBalance, text),
		PaymentsReceived: optionalAmount(itauPayments, text),
		Purchases:        optionalAmount(itauPurchases, text),
		Fees:             "0.00",
		Interest:         optionalAmount(itauInterest, text),
		TotalAmount:      totalAmount,
		LineItems:        p.lineItems(text, yearOf(statementDate)),
	}

	return st, nil
}

func (p *Itau) statementDate(text string) (string, error) {
	for _, re := range []*regexp.Regexp{itauEmissao, itauPostagem} {
		if m := re.FindStringSubmatch(text); m != nil {
			return parseStatementDate(m[1], 0)
		}
	}
	return "", fmt.Errorf("statement issue date not found")
}

func (p *Itau) totalAmount(text string) (string, error) {
	for _, re := range []*regexp.Regexp{itauTotal, itauTotalAlt} {
		if m := re.FindStringSubmatch(text); m != nil {
			return formatAmount(m[1])
		}
	}
	return "", fmt.Errorf("statement total not found")
}

func (p *Itau) lineItems(text string, year int) []ParsedLineItem {
	var items []ParsedLineItem

	for _, m := range itauLine.FindAllStringSubmatch(text, -1) {
		date, err := parseStatementDate(m[1], year)
		if err != nil {
			continue
		}
		amount, err := formatAmount(m[3])
		if err != nil {
			continue
		}
		description := cleanEstablishmentName(m[2])
		if len(description) < 3 {
			// Too short to be a real establishment; likely a header row.
			continue
		}

		items = append(items, ParsedLineItem{
			Date:        date,
			Description: description,
			Amount:      amount,
			Type:        TypePurchase,
		})
	}

	return items
}

// cleanEstablishmentName strips OCR-split location suffixes and category
// keywords that Itaú prints alongside the merchant name.
func cleanEstablishmentName(name string) string {
	cleaned := itauSpaces.ReplaceAllString(name, " ")
	cleaned = itauLocationNoise.ReplaceAllString(cleaned, "")
	cleaned = itauCategoryNoise.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(itauSpaces.ReplaceAllString(cleaned, " "))
}

func firstRequiredDate(re *regexp.Regexp, text, what string) (string, error) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "", fmt.Errorf("%s not found", what)
	}
	return parseStatementDate(m[1], 0)
}

func optionalAmount(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return "0.00"
	}
	amount, err := formatAmount(m[1])
	if err != nil {
		return "0.00"
	}
	return amount
}

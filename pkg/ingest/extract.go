package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmaraujo/hermes-sync/pkg/model"
)

// Default record categories.
const (
	IncomeCategory  = "Extra Income"
	ExpenseCategory = "Food"
)

var (
	// amountPattern captures the currency value in a notification,
	// e.g. "R$ 150,00" or "R$1.250,00".
	amountPattern = regexp.MustCompile(`R\$\s*([0-9][0-9.,]*)`)

	// transferIDPattern matches the 32-character end-to-end transfer
	// id banks attach to Pix notifications: "E" + 8-digit institution
	// code + timestamp + sequence.
	transferIDPattern = regexp.MustCompile(`\bE\d{8}\d{12}[A-Za-z0-9]{11}\b`)
)

// Transfer is one candidate financial event extracted from a message.
type Transfer struct {
	Kind        string
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	MessageID   string
	TransferID  string
}

// ExtractTransfer pulls a transfer out of a notification message.
// The event date is the server delivery instant carried by msg, never a
// client-controlled header.
func ExtractTransfer(msg model.Message, incomeKeywords []string) (Transfer, error) {
	text := msg.Subject + " " + msg.Snippet

	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return Transfer{}, fmt.Errorf("no currency amount in message %s", msg.ID)
	}
	amount, err := ParseAmount(m[1])
	if err != nil {
		return Transfer{}, fmt.Errorf("message %s: %w", msg.ID, err)
	}

	kind := model.KindExpense
	lower := strings.ToLower(text)
	for _, kw := range incomeKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			kind = model.KindIncome
			break
		}
	}

	return Transfer{
		Kind:        kind,
		Description: "Pix: " + msg.Subject,
		Amount:      amount,
		Date:        msg.Received,
		MessageID:   msg.ID,
		TransferID:  transferIDPattern.FindString(text),
	}, nil
}

// ParseAmount parses a currency figure that may use either the
// Brazilian convention ("1.250,00") or a plain decimal point
// ("150.00"). Separator roles are decided by which one appears last.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.Trim(s, ".,")
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			// 1.250,00
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,250.00
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// Comma is the decimal separator: 150,00.
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		// A dot followed by exactly three digits is a thousands
		// separator (1.500); one or two digits make it decimal (150.00).
		if len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed amount %q: %w", s, err)
	}
	return amount, nil
}

// Record materializes the transfer as a write-once financial record.
func (t Transfer) Record(id string) model.FinancialRecord {
	category := ExpenseCategory
	if t.Kind == model.KindIncome {
		category = IncomeCategory
	}
	return model.FinancialRecord{
		ID:                id,
		Kind:              t.Kind,
		Description:       t.Description,
		Amount:            t.Amount,
		Date:              t.Date,
		Sprint:            sprintBucket(t.Date.Day()),
		Category:          category,
		Status:            "active",
		ExternalMessageID: t.MessageID,
		TransferID:        t.TransferID,
	}
}

// sprintBucket derives the period bucket from the day of month.
func sprintBucket(day int) int {
	switch {
	case day < 8:
		return 1
	case day < 15:
		return 2
	case day < 22:
		return 3
	default:
		return 4
	}
}

package extraction

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-approval/internal/domain/entity"
)

// ErrMalformedResponse is returned when a model reply holds no usable JSON object
var ErrMalformedResponse = errors.New("malformed extraction response")

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	trailingFence = regexp.MustCompile("\\s*```\\s*$")
)

type rawResult struct {
	VendorName       *string                    `json:"vendor_name"`
	InvoiceNumber    *string                    `json:"invoice_number"`
	InvoiceDate      *string                    `json:"invoice_date"`
	DueDate          *string                    `json:"due_date"`
	LineItems        []rawLineItem              `json:"line_items"`
	Subtotal         amount                     `json:"subtotal"`
	Tax              amount                     `json:"tax"`
	GrandTotal       amount                     `json:"grand_total"`
	PaymentTerms     *string                    `json:"payment_terms"`
	BankDetails      *string                    `json:"bank_details"`
	ConfidenceScores map[string]json.RawMessage `json:"confidence_scores"`
}

type rawLineItem struct {
	Description *string `json:"description"`
	Quantity    amount  `json:"quantity"`
	UnitPrice   amount  `json:"unit_price"`
	Total       amount  `json:"total"`
}

// amount accepts JSON numbers, numeric strings with currency decoration, or null.
// Anything unreadable becomes null rather than failing the whole reply.
type amount struct {
	decimal.NullDecimal
}

func (a *amount) UnmarshalJSON(data []byte) error {
	a.NullDecimal = decimal.NullDecimal{}
	text := strings.TrimSpace(string(data))
	if text == "null" || text == "" {
		return nil
	}
	if strings.HasPrefix(text, `"`) {
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil
		}
		text = cleanNumber(s)
		if text == "" {
			return nil
		}
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	a.NullDecimal = decimal.NewNullDecimal(d)
	return nil
}

func cleanNumber(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			return r
		default:
			return -1
		}
	}, s)
}

// Parse turns a model reply into an extraction result.
// Code fences and surrounding prose are tolerated; confidence scores
// default to an empty map and line items to an empty list.
func Parse(reply string) (*entity.ExtractionResult, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	var raw *rawResult
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil || raw == nil {
		embedded := extractJSON(cleaned)
		if embedded == "" {
			return nil, fmt.Errorf("%w: no JSON object found", ErrMalformedResponse)
		}
		raw = nil
		if err := json.Unmarshal([]byte(embedded), &raw); err != nil || raw == nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
	}

	result := &entity.ExtractionResult{
		VendorName:       nonEmpty(raw.VendorName),
		InvoiceNumber:    nonEmpty(raw.InvoiceNumber),
		InvoiceDate:      nonEmpty(raw.InvoiceDate),
		DueDate:          nonEmpty(raw.DueDate),
		Subtotal:         raw.Subtotal.NullDecimal,
		Tax:              raw.Tax.NullDecimal,
		GrandTotal:       raw.GrandTotal.NullDecimal,
		PaymentTerms:     nonEmpty(raw.PaymentTerms),
		BankDetails:      nonEmpty(raw.BankDetails),
		LineItems:        make([]entity.LineItem, 0, len(raw.LineItems)),
		ConfidenceScores: make(map[string]float64, len(raw.ConfidenceScores)),
	}

	for _, item := range raw.LineItems {
		var desc string
		if item.Description != nil {
			desc = strings.TrimSpace(*item.Description)
		}
		result.LineItems = append(result.LineItems, entity.LineItem{
			Description: desc,
			Quantity:    item.Quantity.NullDecimal,
			UnitPrice:   item.UnitPrice.NullDecimal,
			Total:       item.Total.NullDecimal,
		})
	}

	for field, value := range raw.ConfidenceScores {
		var score *float64
		if err := json.Unmarshal(value, &score); err != nil || score == nil {
			continue
		}
		result.ConfidenceScores[field] = clamp(*score)
	}

	return result, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}

// extractJSON returns the first balanced {...} block in content, or ""
func extractJSON(content string) string {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

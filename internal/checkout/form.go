package checkout

import (
	"strings"
	"unicode"
)

// Form carries the raw checkout-intent fields submitted by the visitor.
type Form struct {
	Company        string `json:"company" validate:"required"`
	BusinessID     string `json:"businessId" validate:"businessid"`
	Contact        string `json:"contact" validate:"required"`
	Email          string `json:"email" validate:"required"`
	Phone          string `json:"phone" validate:"phonedigits"`
	City           string `json:"city" validate:"required"`
	DeliveryWindow string `json:"deliveryWindow" validate:"deliverywindow"`
	Notes          string `json:"notes"`
	Consent        bool   `json:"consent" validate:"required"`
}

// DeliveryWindow is one selectable delivery timeframe.
type DeliveryWindow struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DeliveryWindows lists the accepted deliveryWindow values in display order.
var DeliveryWindows = []DeliveryWindow{
	{Value: "asap", Label: "Mahdollisimman pian"},
	{Value: "2-4 weeks", Label: "2–4 viikkoa"},
	{Value: "1-2 months", Label: "1–2 kuukautta"},
	{Value: "flexible", Label: "Joustava aikataulu"},
}

// DeliveryLabel returns the display label for value and whether it is known.
func DeliveryLabel(value string) (string, bool) {
	for _, w := range DeliveryWindows {
		if w.Value == value {
			return w.Label, true
		}
	}
	return "", false
}

// Normalize returns a copy of f with whitespace, identifier and contact
// fields canonicalised.
func Normalize(f Form) Form {
	f.Company = collapseSpaces(f.Company)
	f.Contact = collapseSpaces(f.Contact)
	f.City = collapseSpaces(f.City)
	f.Notes = collapseSpaces(f.Notes)
	f.BusinessID = keep(f.BusinessID, func(r rune) bool { return isDigit(r) || r == '-' })
	f.Phone = normalizePhone(f.Phone)
	f.Email = strings.ToLower(strings.TrimSpace(f.Email))
	f.DeliveryWindow = strings.TrimSpace(f.DeliveryWindow)
	return f
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	digits := keep(s, isDigit)
	if strings.HasPrefix(s, "+") {
		return "+" + digits
	}
	return digits
}

func keep(s string, fn func(rune) bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if fn(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r < unicode.MaxASCII && r >= '0' && r <= '9'
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if isDigit(r) {
			n++
		}
	}
	return n
}

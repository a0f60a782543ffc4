package checkout

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/hrk/storefront-api/internal/cart"
	"github.com/hrk/storefront-api/internal/view"
)

var businessIDPattern = regexp.MustCompile(`^\d{7}-\d$`)

// MinPhoneDigits is the minimum digit count of a valid phone number.
const MinPhoneDigits = 7

var fieldMessages = map[string]string{
	"Company":        "Anna yrityksen nimi.",
	"BusinessID":     "Tarkista Y-tunnus (muoto 1234567-8).",
	"Contact":        "Anna yhteyshenkilön nimi.",
	"Email":          "Anna sähköpostiosoite.",
	"Phone":          "Anna puhelinnumero (vähintään 7 numeroa).",
	"City":           "Anna toimituskaupunki.",
	"DeliveryWindow": "Valitse toivottu toimitusaikataulu.",
	"Consent":        "Hyväksy yhteydenotto jatkaaksesi.",
}

// EmptyCartMessage is reported when the cart has no line items.
const EmptyCartMessage = "Lisää vähintään yksi tuote ostoskoriin."

// Cart is the read side of the cart consumed at submit time.
type Cart interface {
	Items() []cart.LineItem
	Subtotal() float64
	ItemCount() int
}

// ViewSwitcher activates a storefront view.
type ViewSwitcher interface {
	SetView(name string) string
}

// Row is one label/value pair of the confirmation summary.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Summary is the confirmation rendered after a valid submission.
type Summary struct {
	Rows        []Row     `json:"rows"`
	Subtotal    float64   `json:"subtotal"`
	ItemCount   int       `json:"itemCount"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// Result is the outcome of Submit.
type Result struct {
	Errors    []string `json:"errors,omitempty"`
	Summary   *Summary `json:"summary,omitempty"`
	ClearForm bool     `json:"clearForm"`
	View      string   `json:"view,omitempty"`
}

// OK reports whether the submission was accepted.
func (r Result) OK() bool {
	return len(r.Errors) == 0 && r.Summary != nil
}

// Config groups Validator dependencies.
type Config struct {
	Logger IntentLogger
	Now    func() time.Time
}

// Validator checks checkout-intent submissions and assembles confirmations.
type Validator struct {
	validate *validator.Validate
	logger   IntentLogger
	now      func() time.Time
}

// NewValidator constructs a Validator with the custom field rules registered.
func NewValidator(cfg Config) (*Validator, error) {
	v := validator.New()
	rules := map[string]validator.Func{
		"businessid": func(fl validator.FieldLevel) bool {
			return businessIDPattern.MatchString(fl.Field().String())
		},
		"phonedigits": func(fl validator.FieldLevel) bool {
			return digitCount(fl.Field().String()) >= MinPhoneDigits
		},
		"deliverywindow": func(fl validator.FieldLevel) bool {
			_, ok := DeliveryLabel(fl.Field().String())
			return ok
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("register %s validation: %w", tag, err)
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Validator{validate: v, logger: cfg.Logger, now: now}, nil
}

// Validate normalises form and reports every violated rule in field order.
// The returned slice is empty when the submission is acceptable.
func (v *Validator) Validate(form Form, c Cart) []string {
	form = Normalize(form)
	var messages []string
	if err := v.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []string{err.Error()}
		}
		for _, fe := range verrs {
			msg, ok := fieldMessages[fe.StructField()]
			if !ok {
				msg = fmt.Sprintf("Tarkista kenttä %s.", fe.Field())
			}
			messages = append(messages, msg)
		}
	}
	if c == nil || len(c.Items()) == 0 {
		messages = append(messages, EmptyCartMessage)
	}
	return messages
}

// Submit validates form against the cart. On success it switches the view
// to checkout, requests the form be cleared and emits a diagnostic entry.
// On failure nothing but the returned errors changes.
func (v *Validator) Submit(form Form, c Cart, views ViewSwitcher) Result {
	if errs := v.Validate(form, c); len(errs) > 0 {
		return Result{Errors: errs}
	}
	form = Normalize(form)
	summary := v.summarize(form, c)

	res := Result{Summary: &summary, ClearForm: true}
	if views != nil {
		res.View = views.SetView(view.ViewCheckout)
	}
	v.record(Intent{
		Company:        form.Company,
		City:           form.City,
		DeliveryWindow: form.DeliveryWindow,
		Subtotal:       summary.Subtotal,
		CartSize:       summary.ItemCount,
		Lines:          len(c.Items()),
		Timestamp:      summary.SubmittedAt,
	})
	return res
}

func (v *Validator) summarize(form Form, c Cart) Summary {
	items := c.Items()
	products := make([]string, 0, len(items))
	for _, it := range items {
		products = append(products, fmt.Sprintf("%d × %s", it.Quantity, it.Name))
	}
	label, _ := DeliveryLabel(form.DeliveryWindow)
	subtotal := c.Subtotal()
	rows := []Row{
		{Label: "Tuotteet", Value: strings.Join(products, ", ")},
		{Label: "Yritys", Value: form.Company},
		{Label: "Y-tunnus", Value: form.BusinessID},
		{Label: "Yhteyshenkilö", Value: form.Contact},
		{Label: "Sähköposti", Value: form.Email},
		{Label: "Puhelin", Value: form.Phone},
		{Label: "Kaupunki", Value: form.City},
		{Label: "Toimitusaikataulu", Value: label},
		{Label: "Välisumma", Value: FormatEuro(subtotal)},
	}
	if form.Notes != "" {
		rows = append(rows, Row{Label: "Lisätiedot", Value: form.Notes})
	}
	return Summary{
		Rows:        rows,
		Subtotal:    subtotal,
		ItemCount:   c.ItemCount(),
		SubmittedAt: v.now().UTC(),
	}
}

func (v *Validator) record(in Intent) {
	if v.logger == nil {
		return
	}
	defer func() { _ = recover() }()
	_ = v.logger.LogIntent(in)
}

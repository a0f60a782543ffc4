package checkout

import (
	"time"

	"github.com/rs/zerolog"
)

// Intent is the diagnostic record emitted for an accepted submission.
type Intent struct {
	Company        string    `json:"company"`
	City           string    `json:"city"`
	DeliveryWindow string    `json:"deliveryWindow"`
	Subtotal       float64   `json:"subtotal"`
	CartSize       int       `json:"cartSize"`
	Lines          int       `json:"lines"`
	Timestamp      time.Time `json:"timestamp"`
}

// IntentLogger records accepted checkout intents. Failures never reach the visitor.
type IntentLogger interface {
	LogIntent(Intent) error
}

// ZerologIntentLogger writes intents as structured log events.
type ZerologIntentLogger struct {
	Logger zerolog.Logger
}

// LogIntent implements IntentLogger.
func (l ZerologIntentLogger) LogIntent(in Intent) error {
	l.Logger.Info().
		Str("company", in.Company).
		Str("city", in.City).
		Str("delivery_window", in.DeliveryWindow).
		Float64("subtotal", in.Subtotal).
		Int("cart_size", in.CartSize).
		Int("lines", in.Lines).
		Time("submitted_at", in.Timestamp).
		Msg("checkout_intent")
	return nil
}

// MultiIntentLogger fans an intent out to every logger, returning the first error.
type MultiIntentLogger []IntentLogger

// LogIntent implements IntentLogger.
func (m MultiIntentLogger) LogIntent(in Intent) error {
	var first error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.LogIntent(in); err != nil && first == nil {
			first = err
		}
	}
	return first
}

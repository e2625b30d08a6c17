package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeedPrice is a reference price from an external feed, e.g. ETHUSDC.
type FeedPrice struct {
	Symbol string
	Rate   decimal.Decimal
	At     time.Time
}

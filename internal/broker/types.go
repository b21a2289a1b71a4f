package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrNoPrice         = errors.New("no price for symbol")
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the side that closes a position opened on s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type Status string

const (
	StatusFilled   Status = "FILLED"
	StatusRejected Status = "REJECTED"
)

// Position is an order intent. A zero LimitPrice means market.
type Position struct {
	Symbol     string
	Side       Side
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	Reason     string
}

func (p Position) Validate() error {
	if strings.TrimSpace(p.Symbol) == "" {
		return fmt.Errorf("%w: symbol required", ErrInvalidPosition)
	}
	if p.Side != Buy && p.Side != Sell {
		return fmt.Errorf("%w: side %q", ErrInvalidPosition, p.Side)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidPosition)
	}
	if p.LimitPrice.IsNegative() {
		return fmt.Errorf("%w: negative limit price", ErrInvalidPosition)
	}
	return nil
}

// Confirmation is the broker's answer to SubmitOrder.
type Confirmation struct {
	OrderID     string
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Status      Status
	SubmittedAt time.Time
}

// Notional returns price * quantity.
func (c Confirmation) Notional() decimal.Decimal { return c.Price.Mul(c.Quantity) }

// Broker submits positions. Implementations own their timeouts.
type Broker interface {
	SubmitOrder(ctx context.Context, pos Position) (Confirmation, error)
}

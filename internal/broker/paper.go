package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	logx "konan/pkg/logx"
)

// PaperConfig configures the simulated broker.
//
// RatePerSec <= 0 disables throttling. Burst defaults to 1.
type PaperConfig struct {
	RatePerSec float64
	Burst      int
	Marks      map[string]decimal.Decimal
}

// Paper fills every valid order immediately at its limit price or at the
// symbol's last mark.
type Paper struct {
	log     logx.Logger
	limiter *rate.Limiter
	now     func() time.Time

	mu       sync.Mutex
	marks    map[string]decimal.Decimal
	ledger   []Confirmation
	holdings map[string]decimal.Decimal
}

func NewPaper(cfg PaperConfig, log logx.Logger) *Paper {
	if log.IsZero() {
		log = logx.Nop()
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	marks := make(map[string]decimal.Decimal, len(cfg.Marks))
	for sym, px := range cfg.Marks {
		marks[sym] = px
	}
	return &Paper{
		log:      log.With(logx.String("comp", "broker.paper")),
		limiter:  lim,
		now:      time.Now,
		marks:    marks,
		holdings: map[string]decimal.Decimal{},
	}
}

// SetMark records the last traded price for symbol.
func (p *Paper) SetMark(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	p.marks[symbol] = price
	p.mu.Unlock()
}

func (p *Paper) SubmitOrder(ctx context.Context, pos Position) (Confirmation, error) {
	if err := pos.Validate(); err != nil {
		return Confirmation{}, err
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return Confirmation{}, fmt.Errorf("order throttle: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	price := pos.LimitPrice
	if price.IsZero() {
		mark, ok := p.marks[pos.Symbol]
		if !ok {
			return Confirmation{}, fmt.Errorf("%w: %s", ErrNoPrice, pos.Symbol)
		}
		price = mark
	}

	conf := Confirmation{
		OrderID:     uuid.NewString(),
		Symbol:      pos.Symbol,
		Side:        pos.Side,
		Quantity:    pos.Quantity,
		Price:       price,
		Status:      StatusFilled,
		SubmittedAt: p.now(),
	}
	signed := pos.Quantity
	if pos.Side == Sell {
		signed = signed.Neg()
	}
	net := p.holdings[pos.Symbol].Add(signed)
	if net.IsZero() {
		delete(p.holdings, pos.Symbol)
	} else {
		p.holdings[pos.Symbol] = net
	}
	p.ledger = append(p.ledger, conf)

	p.log.Info("order filled",
		logx.String("order_id", conf.OrderID),
		logx.String("symbol", conf.Symbol),
		logx.String("side", string(conf.Side)),
		logx.String("qty", conf.Quantity.String()),
		logx.String("price", conf.Price.String()),
	)
	return conf, nil
}

// Ledger returns a copy of every confirmation in submission order.
func (p *Paper) Ledger() []Confirmation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Confirmation(nil), p.ledger...)
}

// Holdings returns the signed net quantity per symbol; flat symbols are omitted.
func (p *Paper) Holdings() map[string]decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(p.holdings))
	for k, v := range p.holdings {
		out[k] = v
	}
	return out
}

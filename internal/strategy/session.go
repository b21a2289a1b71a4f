package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"konan/internal/broker"
	"konan/internal/datasource"
	"konan/internal/filter"
	"konan/internal/schedule"
	logx "konan/pkg/logx"
)

// Action names understood by Session.
const (
	ActionOpenDay        = "open_day"
	ActionHedgePositions = "hedge_positions"
	ActionGuardPositions = "guard_positions"
	ActionEndDay         = "end_day"
)

// Step binds a trigger time to an action name in a session plan.
type Step struct {
	Action string
	Args   any
}

// DefaultPlan is the trading day used when no plan is configured.
func DefaultPlan() map[string]Step {
	return map[string]Step{
		"09:30:00": {Action: ActionOpenDay, Args: "thing"},
		"12:00:00": {Action: ActionHedgePositions, Args: "not-thing"},
		"13:00:00": {Action: ActionGuardPositions},
		"15:30:00": {Action: ActionEndDay},
	}
}

type SessionConfig struct {
	Name         string
	Universe     string
	SymbolColumn string
	PriceColumn  string
	Quantity     decimal.Decimal
	Plan         map[string]Step
}

func (c *SessionConfig) normalize() {
	if strings.TrimSpace(c.Name) == "" {
		c.Name = "session"
	}
	if c.SymbolColumn == "" {
		c.SymbolColumn = "ticker"
	}
	if c.PriceColumn == "" {
		c.PriceColumn = "price"
	}
	if !c.Quantity.IsPositive() {
		c.Quantity = decimal.NewFromInt(1)
	}
	if len(c.Plan) == 0 {
		c.Plan = DefaultPlan()
	}
}

// Session is the bundled example strategy. It loads a universe at the open,
// buys filtered candidates, sells anything that drops off the whitelist and
// flattens the book at the end of the day.
type Session struct {
	cfg    SessionConfig
	loader *datasource.Loader
	filter *filter.LiveFilter
	broker broker.Broker
	now    func() time.Time
	log    logx.Logger

	events map[string]schedule.Event

	mu         sync.Mutex
	universe   datasource.Table
	candidates datasource.Table
	held       map[string]decimal.Decimal
	loaded     bool
}

// NewSession resolves cfg.Plan against Actions. A nil filter trades the
// whole universe.
func NewSession(cfg SessionConfig, loader *datasource.Loader, lf *filter.LiveFilter, b broker.Broker, log logx.Logger) (*Session, error) {
	if loader == nil || b == nil {
		return nil, errors.New("session: loader and broker are required")
	}
	cfg.normalize()
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Session{
		cfg:    cfg,
		loader: loader,
		filter: lf,
		broker: b,
		now:    time.Now,
		log:    log.With(logx.String("strategy", cfg.Name)),
		held:   map[string]decimal.Decimal{},
	}
	actions := s.Actions()
	s.events = make(map[string]schedule.Event, len(cfg.Plan))
	for trigger, step := range cfg.Plan {
		act, ok := actions[step.Action]
		if !ok {
			return nil, fmt.Errorf("%w: %q at %s", ErrUnknownAction, step.Action, trigger)
		}
		s.events[trigger] = schedule.Event{Name: step.Action, Action: act, Args: step.Args}
	}
	return s, nil
}

// SetClock overrides the wall clock the filter is evaluated against.
func (s *Session) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// ActionNames lists the names accepted in a plan.
func ActionNames() []string {
	names := []string{ActionOpenDay, ActionHedgePositions, ActionGuardPositions, ActionEndDay}
	sort.Strings(names)
	return names
}

func (s *Session) Actions() map[string]schedule.Action {
	return map[string]schedule.Action{
		ActionOpenDay:        schedule.With(s.openDay),
		ActionHedgePositions: schedule.With(s.hedgePositions),
		ActionGuardPositions: schedule.Do(s.guardPositions),
		ActionEndDay:         schedule.Do(s.endDay),
	}
}

func (s *Session) Name() string { return s.cfg.Name }

func (s *Session) Events() map[string]schedule.Event {
	out := make(map[string]schedule.Event, len(s.events))
	for k, v := range s.events {
		out[k] = v
	}
	return out
}

// Holdings returns the session's open quantities per symbol.
func (s *Session) Holdings() map[string]decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(s.held))
	for k, v := range s.held {
		out[k] = v
	}
	return out
}

func (s *Session) openDay(ctx context.Context, note string) error {
	if err := s.CheckPortfolio(ctx); err != nil {
		return err
	}
	t, err := s.loader.Load(s.cfg.Universe)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}
	if t.Index(s.cfg.SymbolColumn) < 0 {
		return fmt.Errorf("universe %s: %w: %q", s.cfg.Universe, filter.ErrUnknownColumn, s.cfg.SymbolColumn)
	}
	s.mu.Lock()
	s.universe = t
	s.candidates = t
	s.loaded = true
	s.mu.Unlock()

	s.log.Info("day opened",
		logx.String("universe", s.cfg.Universe),
		logx.Int("rows", t.Len()),
		logx.String("note", note),
	)
	return nil
}

func (s *Session) hedgePositions(ctx context.Context, note string) error {
	s.mu.Lock()
	universe, loaded := s.universe, s.loaded
	s.mu.Unlock()
	if !loaded {
		return errors.New("hedge before open: universe not loaded")
	}

	cand := universe
	if s.filter != nil {
		t, ok, err := s.filter.UpdateCandidates(s.now(), universe)
		if err != nil {
			return fmt.Errorf("candidates: %w", err)
		}
		if ok {
			cand = t
		}
	}
	s.mu.Lock()
	s.candidates = cand
	s.mu.Unlock()

	confs, err := Trade(ctx, s)
	s.log.Info("positions hedged",
		logx.Int("candidates", cand.Len()),
		logx.Int("orders", len(confs)),
		logx.String("note", note),
	)
	return err
}

func (s *Session) guardPositions(ctx context.Context) error {
	if s.filter == nil {
		return nil
	}
	s.mu.Lock()
	universe := s.universe
	s.mu.Unlock()

	white, ok, err := s.filter.UpdateWhitelist(s.now(), universe)
	if err != nil {
		return fmt.Errorf("whitelist: %w", err)
	}
	if !ok {
		return nil
	}
	allowed := map[string]bool{}
	if col, found := white.Column(s.cfg.SymbolColumn); found {
		for _, sym := range col {
			allowed[sym] = true
		}
	}
	closed, err := s.closeWhere(ctx, func(sym string) bool { return !allowed[sym] })
	s.log.Info("positions guarded", logx.Int("whitelist", white.Len()), logx.Int("closed", closed))
	return err
}

func (s *Session) endDay(ctx context.Context) error {
	closed, err := s.closeWhere(ctx, func(string) bool { return true })
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.universe = datasource.Table{}
	s.candidates = datasource.Table{}
	s.loaded = false
	s.mu.Unlock()
	s.log.Info("day ended", logx.Int("closed", closed))
	return nil
}

func (s *Session) closeWhere(ctx context.Context, match func(string) bool) (int, error) {
	s.mu.Lock()
	var positions []broker.Position
	for sym, qty := range s.held {
		if !match(sym) {
			continue
		}
		side := broker.Sell
		if qty.IsNegative() {
			side = broker.Buy
		}
		positions = append(positions, broker.Position{
			Symbol:     sym,
			Side:       side,
			Quantity:   qty.Abs(),
			LimitPrice: s.priceOf(sym),
			Reason:     "close",
		})
	}
	s.mu.Unlock()
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	closed := 0
	for _, pos := range positions {
		conf, err := s.MakeTrade(ctx, pos)
		if err != nil {
			return closed, fmt.Errorf("close %s: %w", pos.Symbol, err)
		}
		if err := s.UpdatePortfolio(ctx, pos, conf); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// priceOf looks sym up in the loaded universe. Zero means unknown and
// leaves pricing to the broker. Callers hold s.mu.
func (s *Session) priceOf(sym string) decimal.Decimal {
	syms, ok := s.universe.Column(s.cfg.SymbolColumn)
	if !ok {
		return decimal.Zero
	}
	prices, ok := s.universe.Column(s.cfg.PriceColumn)
	if !ok {
		return decimal.Zero
	}
	for i, v := range syms {
		if strings.TrimSpace(v) != sym {
			continue
		}
		if px, err := decimal.NewFromString(strings.TrimSpace(prices[i])); err == nil && px.IsPositive() {
			return px
		}
	}
	return decimal.Zero
}

// CheckPortfolio rejects a book holding zero quantities, which would mean
// UpdatePortfolio lost track of a fill.
func (s *Session) CheckPortfolio(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sym, qty := range s.held {
		if qty.IsZero() {
			return fmt.Errorf("portfolio: zero holding recorded for %s", sym)
		}
	}
	return nil
}

// CheckDecision buys one lot of every candidate not already held, at the
// candidate's price column when it parses.
func (s *Session) CheckDecision(ctx context.Context) ([]broker.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	syms, ok := s.candidates.Column(s.cfg.SymbolColumn)
	if !ok {
		return nil, nil
	}
	prices, _ := s.candidates.Column(s.cfg.PriceColumn)
	seen := map[string]bool{}
	var out []broker.Position
	for i, sym := range syms {
		sym = strings.TrimSpace(sym)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		if _, held := s.held[sym]; held {
			continue
		}
		pos := broker.Position{Symbol: sym, Side: broker.Buy, Quantity: s.cfg.Quantity, Reason: "candidate"}
		if prices != nil {
			if px, err := decimal.NewFromString(strings.TrimSpace(prices[i])); err == nil && px.IsPositive() {
				pos.LimitPrice = px
			}
		}
		out = append(out, pos)
	}
	return out, nil
}

func (s *Session) MakeTrade(ctx context.Context, pos broker.Position) (broker.Confirmation, error) {
	return s.broker.SubmitOrder(ctx, pos)
}

func (s *Session) UpdatePortfolio(ctx context.Context, pos broker.Position, conf broker.Confirmation) error {
	if conf.Status != broker.StatusFilled {
		return fmt.Errorf("order %s for %s not filled: %s", conf.OrderID, pos.Symbol, conf.Status)
	}
	signed := conf.Quantity
	if conf.Side == broker.Sell {
		signed = signed.Neg()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	net := s.held[pos.Symbol].Add(signed)
	if net.IsZero() {
		delete(s.held, pos.Symbol)
	} else {
		s.held[pos.Symbol] = net
	}
	return nil
}

var _ Strategy = (*Session)(nil)

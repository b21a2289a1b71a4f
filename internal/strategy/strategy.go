// Package strategy binds trading strategies to the schedule engine.
//
// A Strategy supplies its time-keyed events and the four hooks the trading
// loop is built from. A Runner owns the strategy's Schedule and drives one
// session at a time through the engine.
package strategy

import (
	"context"
	"errors"
	"fmt"

	"konan/internal/broker"
	"konan/internal/schedule"
)

var (
	ErrAlreadyRunning = errors.New("session already running")
	ErrUnknownAction  = errors.New("unknown action")
)

type Strategy interface {
	Name() string
	Events() map[string]schedule.Event

	CheckPortfolio(ctx context.Context) error
	CheckDecision(ctx context.Context) ([]broker.Position, error)
	MakeTrade(ctx context.Context, pos broker.Position) (broker.Confirmation, error)
	UpdatePortfolio(ctx context.Context, pos broker.Position, conf broker.Confirmation) error
}

// Trade runs one decision round: every position returned by CheckDecision
// is traded and then recorded. The first failure stops the round.
func Trade(ctx context.Context, s Strategy) ([]broker.Confirmation, error) {
	positions, err := s.CheckDecision(ctx)
	if err != nil {
		return nil, fmt.Errorf("check decision: %w", err)
	}
	confs := make([]broker.Confirmation, 0, len(positions))
	for _, pos := range positions {
		if err := ctx.Err(); err != nil {
			return confs, err
		}
		conf, err := s.MakeTrade(ctx, pos)
		if err != nil {
			return confs, fmt.Errorf("trade %s %s: %w", pos.Side, pos.Symbol, err)
		}
		if err := s.UpdatePortfolio(ctx, pos, conf); err != nil {
			return confs, fmt.Errorf("update portfolio %s: %w", pos.Symbol, err)
		}
		confs = append(confs, conf)
	}
	return confs, nil
}

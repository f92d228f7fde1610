package bots

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	"ladderbot/engine"
)

// SeedConfig shapes the resting liquidity SeedBook lays down.
type SeedConfig struct {
	Mid decimal.Decimal
	// Levels is the number of price levels on each side.
	Levels int
	// MaxQuantity bounds the whole-unit size drawn for each level.
	MaxQuantity int64
}

// SeedBook rests Levels bids below and Levels asks above Mid, one tick apart,
// so a fresh book has a best bid and ask. Bids that would fall to zero or
// below are skipped.
func SeedBook(book *engine.OrderBook, rng *rand.Rand, cfg SeedConfig) error {
	bookCfg := book.Config()
	tick := bookCfg.TickSize
	if tick.Sign() <= 0 {
		return errors.New("seed: book tick size must be positive")
	}
	if cfg.Levels < 1 {
		return fmt.Errorf("seed: levels must be positive, got %d", cfg.Levels)
	}
	maxQty := cfg.MaxQuantity
	if maxQty < 1 {
		maxQty = 5
	}
	mid := floorToTick(cfg.Mid, tick)

	for i := 1; i <= cfg.Levels; i++ {
		step := tick.Mul(decimal.NewFromInt(int64(i)))
		for _, side := range []engine.Side{engine.Buy, engine.Sell} {
			price := mid.Add(step)
			if side == engine.Buy {
				price = mid.Sub(step)
			}
			if price.Sign() <= 0 {
				continue
			}
			order := engine.Order{
				ID:       "seed-" + side.String() + "-" + strconv.Itoa(i),
				Symbol:   bookCfg.Symbol,
				Side:     side,
				Type:     engine.Limit,
				Price:    price,
				Quantity: decimal.NewFromInt(rng.Int63n(maxQty) + 1),
			}
			if err := book.SubmitOrder(order); err != nil {
				return fmt.Errorf("seed %s: %w", order.ID, err)
			}
		}
	}
	return nil
}

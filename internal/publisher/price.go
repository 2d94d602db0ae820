package publisher

import (
	"fmt"
	"math/rand/v2"

	"github.com/brianly1003/stockchat/internal/domain/events"
)

// Price defaults.
const (
	DefaultLabel    = "PostStocks"
	DefaultMinPrice = 101
	DefaultMaxPrice = 112
)

// PriceSource produces the next price tick. Implementations are called from
// the publisher loop only.
type PriceSource interface {
	Next() (events.PriceTick, error)
}

// UniformPriceSource draws whole prices uniformly from [Min, Max].
type UniformPriceSource struct {
	label    string
	min, max int
	rng      *rand.Rand
}

// NewUniformPriceSource creates a source. An empty label selects DefaultLabel.
func NewUniformPriceSource(label string, min, max int) (*UniformPriceSource, error) {
	if min > max {
		return nil, fmt.Errorf("invalid price range [%d, %d]", min, max)
	}
	if label == "" {
		label = DefaultLabel
	}
	return &UniformPriceSource{
		label: label,
		min:   min,
		max:   max,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}, nil
}

// Next returns a tick with an integral value in [min, max].
func (s *UniformPriceSource) Next() (events.PriceTick, error) {
	v := s.min + s.rng.IntN(s.max-s.min+1)
	return events.PriceTick{Label: s.label, Value: float64(v)}, nil
}

// Package ranking scores merged journeys under a named strategy and explains the choice.
package ranking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidStrategy is returned for an unknown strategy name.
var ErrInvalidStrategy = errors.New("invalid strategy")

// Strategy names the objective journeys are ranked by.
type Strategy string

const (
	StrategyBest            Strategy = "best"
	StrategyFastest         Strategy = "fastest"
	StrategyLeastWalking    Strategy = "least_walking"
	StrategyFewestTransfers Strategy = "fewest_transfers"
)

// Strategies lists every supported strategy.
var Strategies = []Strategy{StrategyBest, StrategyFastest, StrategyLeastWalking, StrategyFewestTransfers}

// ParseStrategy parses a strategy name. An empty name selects StrategyBest.
func ParseStrategy(s string) (Strategy, error) {
	if s == "" {
		return StrategyBest, nil
	}
	normalized := Strategy(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range Strategies {
		if st == normalized {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStrategy, s)
}

// Factor names one scoring dimension.
type Factor string

const (
	FactorArrival     Factor = "arrival"
	FactorDuration    Factor = "duration"
	FactorWalking     Factor = "walking"
	FactorTransfers   Factor = "transfers"
	FactorReliability Factor = "reliability"
)

// Factors lists the scoring dimensions in breakdown order.
var Factors = []Factor{FactorArrival, FactorDuration, FactorWalking, FactorTransfers, FactorReliability}

// Weights maps each factor to its weight. Weights of a strategy sum to 1.
type Weights map[Factor]float64

var strategyWeights = map[Strategy]Weights{
	StrategyBest: {
		FactorArrival:     0.25,
		FactorDuration:    0.25,
		FactorWalking:     0.15,
		FactorTransfers:   0.15,
		FactorReliability: 0.20,
	},
	StrategyFastest: {
		FactorArrival:     0.10,
		FactorDuration:    0.60,
		FactorWalking:     0.10,
		FactorTransfers:   0.10,
		FactorReliability: 0.10,
	},
	StrategyLeastWalking: {
		FactorArrival:     0.10,
		FactorDuration:    0.10,
		FactorWalking:     0.60,
		FactorTransfers:   0.10,
		FactorReliability: 0.10,
	},
	StrategyFewestTransfers: {
		FactorArrival:     0.10,
		FactorDuration:    0.10,
		FactorWalking:     0.10,
		FactorTransfers:   0.60,
		FactorReliability: 0.10,
	},
}

// WeightsFor returns a copy of the weights of a strategy.
func WeightsFor(s Strategy) Weights {
	src, ok := strategyWeights[s]
	if !ok {
		src = strategyWeights[StrategyBest]
	}
	w := make(Weights, len(src))
	for k, v := range src {
		w[k] = v
	}
	return w
}

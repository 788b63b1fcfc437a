package timetable

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/mroth/weightedrand/v2"
)

// Strategy names a candidate ordering policy.
type Strategy string

const (
	StrategyStable     Strategy = "stable"
	StrategyRoundRobin Strategy = "round_robin"
	StrategyShuffle    Strategy = "shuffle"
	StrategyWeighted   Strategy = "weighted"
)

// ParseStrategy normalises a strategy name; empty input means StrategyStable.
func ParseStrategy(raw string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", StrategyStable:
		return StrategyStable, nil
	case StrategyRoundRobin:
		return StrategyRoundRobin, nil
	case StrategyShuffle:
		return StrategyShuffle, nil
	case StrategyWeighted:
		return StrategyWeighted, nil
	}
	return "", fmt.Errorf("unknown arbitration strategy %q", raw)
}

// Seeded reports whether the strategy consumes a random seed.
func (s Strategy) Seeded() bool {
	return s == StrategyShuffle || s == StrategyWeighted
}

// Arbiter decides the order in which candidate subjects are tried for a slot.
// The same order is used for the primary and the fallback pass. Arbiters may
// carry state across slots and are not safe for concurrent use.
type Arbiter interface {
	Strategy() Strategy
	Order(slot TimeSlot, candidates []Subject) []Subject
}

// NewArbiter builds a fresh arbiter for one generation run.
func NewArbiter(strategy Strategy, seed int64) (Arbiter, error) {
	switch strategy {
	case "", StrategyStable:
		return StableArbiter{}, nil
	case StrategyRoundRobin:
		return &RoundRobinArbiter{}, nil
	case StrategyShuffle:
		return NewShuffleArbiter(seed), nil
	case StrategyWeighted:
		return NewWeightedArbiter(seed), nil
	}
	return nil, fmt.Errorf("unknown arbitration strategy %q", strategy)
}

func sortedByID(candidates []Subject) []Subject {
	out := make([]Subject, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StableArbiter tries subjects in ascending id order.
type StableArbiter struct{}

func (StableArbiter) Strategy() Strategy { return StrategyStable }

func (StableArbiter) Order(_ TimeSlot, candidates []Subject) []Subject {
	return sortedByID(candidates)
}

// RoundRobinArbiter rotates the id-sorted order by one position per slot, so
// no subject is always tried first.
type RoundRobinArbiter struct {
	next int
}

func (*RoundRobinArbiter) Strategy() Strategy { return StrategyRoundRobin }

func (r *RoundRobinArbiter) Order(_ TimeSlot, candidates []Subject) []Subject {
	ordered := sortedByID(candidates)
	if len(ordered) == 0 {
		return ordered
	}
	offset := r.next % len(ordered)
	r.next++
	rotated := make([]Subject, 0, len(ordered))
	rotated = append(rotated, ordered[offset:]...)
	return append(rotated, ordered[:offset]...)
}

// ShuffleArbiter shuffles candidates uniformly per slot from an explicit seed.
type ShuffleArbiter struct {
	rng *rand.Rand
}

// NewShuffleArbiter seeds a private source; identical seeds give identical runs.
func NewShuffleArbiter(seed int64) *ShuffleArbiter {
	return &ShuffleArbiter{rng: rand.New(rand.NewSource(seed))}
}

func (*ShuffleArbiter) Strategy() Strategy { return StrategyShuffle }

func (s *ShuffleArbiter) Order(_ TimeSlot, candidates []Subject) []Subject {
	ordered := sortedByID(candidates)
	s.rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	return ordered
}

// WeightedArbiter draws candidates without replacement, each draw weighted by
// priority, so heavier subjects tend to be tried first.
type WeightedArbiter struct {
	rng *rand.Rand
}

// NewWeightedArbiter seeds a private source.
func NewWeightedArbiter(seed int64) *WeightedArbiter {
	return &WeightedArbiter{rng: rand.New(rand.NewSource(seed))}
}

func (*WeightedArbiter) Strategy() Strategy { return StrategyWeighted }

func (w *WeightedArbiter) Order(_ TimeSlot, candidates []Subject) []Subject {
	pool := sortedByID(candidates)
	ordered := make([]Subject, 0, len(pool))
	for len(pool) > 1 {
		choices := make([]weightedrand.Choice[int, uint64], 0, len(pool))
		for idx, subject := range pool {
			choices = append(choices, weightedrand.NewChoice(idx, drawWeight(subject.PriorityWeight)))
		}
		chooser, err := weightedrand.NewChooser(choices...)
		if err != nil {
			// every weight is at least 1, so this only happens on overflow
			break
		}
		picked := chooser.PickSource(w.rng)
		ordered = append(ordered, pool[picked])
		pool = append(pool[:picked], pool[picked+1:]...)
	}
	return append(ordered, pool...)
}

// maxDrawWeight keeps the chooser's running total far from uint64 overflow.
const maxDrawWeight = 1 << 40

func drawWeight(weight float64) uint64 {
	if !ValidWeight(weight) {
		return 1
	}
	scaled := weight * 100
	if scaled >= maxDrawWeight {
		return maxDrawWeight
	}
	if scaled < 1 {
		return 1
	}
	return uint64(scaled)
}

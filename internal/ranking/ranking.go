package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/livetransit/livetransit/internal/journey"
)

// Reliability tuning.
const (
	// DelayPenaltyWindow is the delay, in minutes, at which reliability reaches zero.
	DelayPenaltyWindow = 30.0
	// AlertPenalty is subtracted from reliability per matched alert.
	AlertPenalty = 0.05
	// MaxAlertPenalty caps the total alert penalty.
	MaxAlertPenalty = 0.2
)

// FactorScore is one factor's contribution to a ranking total.
type FactorScore struct {
	Factor       Factor  `json:"factor"`
	Score        float64 `json:"score"`  // normalized 0-1, higher is better
	Weight       float64 `json:"weight"` // strategy weight 0-1
	Contribution float64 `json:"contribution"`
}

// Ranking is the score breakdown of one journey.
type Ranking struct {
	Strategy Strategy      `json:"strategy"`
	Total    float64       `json:"total"`
	Factors  []FactorScore `json:"factors"`
	Why      string        `json:"why"`
}

// Score returns the normalized score of a factor, or 0 when absent.
func (r Ranking) Score(f Factor) float64 {
	for _, fs := range r.Factors {
		if fs.Factor == f {
			return fs.Score
		}
	}
	return 0
}

// RankedJourney is a journey with its ranking.
type RankedJourney struct {
	journey.Journey
	Ranking Ranking `json:"ranking"`
}

// Result is the outcome of RankAndSelect.
type Result struct {
	Strategy     Strategy        `json:"strategy"`
	Best         *RankedJourney  `json:"best"`
	Alternatives []RankedJourney `json:"alternatives"`
	TotalOptions int             `json:"totalOptions"`
}

// RankAndSelect ranks journeys under a strategy and splits off the best one.
// Empty input yields a nil Best and zero options.
func RankAndSelect(journeys []journey.Journey, strategy Strategy) (Result, error) {
	ranked, err := Rank(journeys, strategy)
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Strategy:     strategy,
		Alternatives: []RankedJourney{},
		TotalOptions: len(ranked),
	}
	if len(ranked) == 0 {
		return res, nil
	}
	best := ranked[0]
	res.Best = &best
	res.Alternatives = append(res.Alternatives, ranked[1:]...)
	return res, nil
}

// Rank scores every journey and returns them best first.
//
// Running journeys always precede cancelled ones, and a cancelled journey's total
// is capped at the lowest running total so the order is non-increasing by total.
// Ties fall back to fewer interchanges, then earlier arrival, then input order.
func Rank(journeys []journey.Journey, strategy Strategy) ([]RankedJourney, error) {
	weights, ok := strategyWeights[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}
	if len(journeys) == 0 {
		return []RankedJourney{}, nil
	}

	scores := map[Factor][]float64{
		FactorArrival:   normalizeLowerBetter(arrivalValues(journeys)),
		FactorDuration:  normalizeLowerBetter(valuesOf(journeys, func(j *journey.Journey) float64 { return j.Duration().Minutes() })),
		FactorWalking:   normalizeLowerBetter(valuesOf(journeys, func(j *journey.Journey) float64 { return j.WalkingMeters() })),
		FactorTransfers: normalizeLowerBetter(valuesOf(journeys, func(j *journey.Journey) float64 { return float64(j.Transfers()) })),
	}
	reliability := make([]float64, len(journeys))
	for i := range journeys {
		reliability[i] = Reliability(&journeys[i])
	}
	scores[FactorReliability] = reliability

	ranked := make([]RankedJourney, len(journeys))
	minRunning := math.Inf(1)
	for i := range journeys {
		r := Ranking{Strategy: strategy, Factors: make([]FactorScore, 0, len(Factors))}
		for _, f := range Factors {
			fs := FactorScore{Factor: f, Score: round(scores[f][i]), Weight: weights[f]}
			fs.Contribution = round(fs.Score * fs.Weight)
			r.Total += fs.Score * fs.Weight
			r.Factors = append(r.Factors, fs)
		}
		r.Total = round(r.Total)
		if !journeys[i].HasCancellations && r.Total < minRunning {
			minRunning = r.Total
		}
		ranked[i] = RankedJourney{Journey: journeys[i], Ranking: r}
	}

	for i := range ranked {
		if ranked[i].HasCancellations && ranked[i].Ranking.Total > minRunning {
			ranked[i].Ranking.Total = minRunning
		}
	}

	sort.SliceStable(ranked, func(a, b int) bool {
		return less(&ranked[a], &ranked[b])
	})

	for i := range ranked {
		ranked[i].Ranking.Why = explain(&ranked[i], i == 0)
	}
	return ranked, nil
}

func less(a, b *RankedJourney) bool {
	if a.HasCancellations != b.HasCancellations {
		return !a.HasCancellations
	}
	if a.Ranking.Total != b.Ranking.Total {
		return a.Ranking.Total > b.Ranking.Total
	}
	if ta, tb := a.Transfers(), b.Transfers(); ta != tb {
		return ta < tb
	}
	aa, ba := a.ArrivalTime(), b.ArrivalTime()
	switch {
	case aa != nil && ba != nil:
		return aa.Before(*ba)
	case aa != nil:
		return true
	default:
		return false
	}
}

// Reliability scores a journey on realtime delay and matched alerts. A cancelled journey scores 0.
func Reliability(j *journey.Journey) float64 {
	if j.HasCancellations {
		return 0
	}
	delay := math.Max(0, float64(j.RealtimeDelayMinutes))
	penalty := math.Min(float64(len(j.Alerts))*AlertPenalty, MaxAlertPenalty)
	return clamp(1 - delay/DelayPenaltyWindow - penalty)
}

type value struct {
	v  float64
	ok bool
}

func valuesOf(journeys []journey.Journey, fn func(*journey.Journey) float64) []value {
	out := make([]value, len(journeys))
	for i := range journeys {
		out[i] = value{v: fn(&journeys[i]), ok: true}
	}
	return out
}

func arrivalValues(journeys []journey.Journey) []value {
	out := make([]value, len(journeys))
	for i := range journeys {
		if t := journeys[i].ArrivalTime(); t != nil {
			out[i] = value{v: float64(t.Unix()), ok: true}
		}
	}
	return out
}

// normalizeLowerBetter min-max normalizes values so the lowest scores 1 and the
// highest 0. All-equal values score 1; missing values score 0.
func normalizeLowerBetter(values []value) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !v.ok {
			continue
		}
		lo = math.Min(lo, v.v)
		hi = math.Max(hi, v.v)
	}

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case !v.ok:
			out[i] = 0
		case hi-lo < 1e-9:
			out[i] = 1
		default:
			out[i] = clamp((hi - v.v) / (hi - lo))
		}
	}
	return out
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

var factorLeads = map[Factor]string{
	FactorArrival:     "Arrives earliest",
	FactorDuration:    "Quickest door to door",
	FactorWalking:     "Least walking",
	FactorTransfers:   "Fewest transfers",
	FactorReliability: "Most reliable",
}

// explain renders a one-sentence reason for a journey's position.
func explain(rj *RankedJourney, best bool) string {
	details := describe(&rj.Journey)
	if rj.HasCancellations {
		if best {
			return "Includes a cancelled service but every option is affected; " + details + "."
		}
		return "Ranked below running options because it includes a cancelled service; " + details + "."
	}

	top := rj.Ranking.Factors[0]
	for _, fs := range rj.Ranking.Factors[1:] {
		if fs.Contribution > top.Contribution {
			top = fs
		}
	}
	lead := factorLeads[top.Factor]
	if !best {
		lead = "Alternative with strong " + string(top.Factor) + " score"
	}
	return lead + "; " + details + "."
}

func describe(j *journey.Journey) string {
	parts := []string{fmt.Sprintf("%d min", int(math.Round(j.Duration().Minutes())))}

	switch n := j.Transfers(); n {
	case 0:
		parts = append(parts, "no transfers")
	case 1:
		parts = append(parts, "1 transfer")
	default:
		parts = append(parts, fmt.Sprintf("%d transfers", n))
	}

	parts = append(parts, fmt.Sprintf("%d m walking", int(math.Round(j.WalkingMeters()))))

	if j.RealtimeDelayMinutes > 0 {
		parts = append(parts, fmt.Sprintf("running %d min late", j.RealtimeDelayMinutes))
	}
	if n := len(j.Alerts); n > 0 {
		parts = append(parts, fmt.Sprintf("%d service alert(s)", n))
	}
	return strings.Join(parts, ", ")
}

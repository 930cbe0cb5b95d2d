package rubric

import (
	"math"
	"math/big"
	"strconv"
)

type Tier string

const (
	GoodStanding Tier = "GOOD STANDING"
	Warning      Tier = "WARNING"
	FinalWriteUp Tier = "FINAL WRITE-UP"
	Separation   Tier = "SEPARATION"
)

// Threshold is the inclusive lower bound of a Tier.
type Threshold struct {
	Tier        Tier    `yaml:"tier" json:"tier"`
	MinPoints   float64 `yaml:"min_points" json:"min_points"`
	Description string  `yaml:"description" json:"description"`
}

type Recommendation struct {
	Tier        Tier   `json:"tier"`
	Description string `json:"description"`
}

// TotalPoints sums all scores. Missing categories contribute 0.
// The sum is exact so the result does not depend on the map iteration order;
// rounding only happens once, on the final conversion.
func TotalPoints(scores map[string]float64) float64 {
	total, _ := exactSum(func(yield func(float64)) {
		for _, pts := range scores {
			yield(pts)
		}
	}).Float64()
	return total
}

// Average is the exact mean of values, 0 when empty.
func Average(values ...float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := exactSum(func(yield func(float64)) {
		for _, v := range values {
			yield(v)
		}
	})
	avg, _ := sum.Quo(sum, new(big.Rat).SetInt64(int64(len(values)))).Float64()
	return avg
}

// exactSum adds values as rationals. Non finite values are skipped.
func exactSum(each func(yield func(float64))) *big.Rat {
	sum := new(big.Rat)
	each(func(v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		sum.Add(sum, new(big.Rat).SetFloat64(v))
	})
	return sum
}

// RecommendationFor returns the highest tier whose lower bound is reached by total.
func (r *Rubric) RecommendationFor(total float64) Recommendation {
	for i := len(r.thresholds) - 1; i >= 0; i-- {
		th := r.thresholds[i]
		if total >= th.MinPoints {
			return Recommendation{Tier: th.Tier, Description: th.Description}
		}
	}
	lowest := r.thresholds[0]
	return Recommendation{Tier: lowest.Tier, Description: lowest.Description}
}

// RecommendationFor uses the Default rubric.
func RecommendationFor(total float64) Recommendation {
	return Default().RecommendationFor(total)
}

// FormatPoints renders a total for display, rounded to one decimal.
func FormatPoints(total float64) string {
	rounded := math.Round(total*10) / 10
	if rounded == 0 {
		rounded = 0 // no "-0"
	}
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

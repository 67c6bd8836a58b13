// Package stats aggregates per-participant and per-community counters used
// for engagement scoring.
package stats

// Tier is an engagement bucket derived from a message count.
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
	TierSilent Tier = "silent"
)

const (
	highThreshold   = 20
	mediumThreshold = 5
)

// TierFor buckets a message count.
func TierFor(count int) Tier {
	switch {
	case count >= highThreshold:
		return TierHigh
	case count >= mediumThreshold:
		return TierMedium
	case count > 0:
		return TierLow
	default:
		return TierSilent
	}
}

// TierShare is one row of an engagement distribution.
type TierShare struct {
	Tier       Tier    `json:"tier"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Distribution partitions participants by engagement tier. Percentages are
// taken over the active (count > 0) participants only.
type Distribution struct {
	Tiers  []TierShare `json:"tiers"`
	Active int         `json:"active"`
	Silent int         `json:"silent"`
}

// Count returns the number of participants in tier.
func (d Distribution) Count(tier Tier) int {
	if tier == TierSilent {
		return d.Silent
	}
	for _, share := range d.Tiers {
		if share.Tier == tier {
			return share.Count
		}
	}
	return 0
}

// Distribute computes the tier distribution for a list of per-participant
// message counts. Zero or negative counts are silent.
func Distribute(counts []int) Distribution {
	var high, medium, low, silent int
	for _, count := range counts {
		switch TierFor(count) {
		case TierHigh:
			high++
		case TierMedium:
			medium++
		case TierLow:
			low++
		default:
			silent++
		}
	}
	active := high + medium + low
	return Distribution{
		Tiers: []TierShare{
			{Tier: TierHigh, Count: high, Percentage: percent(high, active)},
			{Tier: TierMedium, Count: medium, Percentage: percent(medium, active)},
			{Tier: TierLow, Count: low, Percentage: percent(low, active)},
		},
		Active: active,
		Silent: silent,
	}
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

package marketplace

import "time"

// ScoreBid scores bid under strategy; higher is better. maxPrice normalizes
// price across the candidate pool (spec.md §4.6).
func ScoreBid(strategy Strategy, bid Bid, maxPrice uint64, now time.Time) float64 {
	switch strategy {
	case LowestPrice:
		return priceScore(bid, maxPrice)
	case HighestReputation:
		return reputationScore(bid)
	case FastestAvailability:
		return availabilityScore(bid, now)
	case Balanced:
		fallthrough
	default:
		return priceScore(bid, maxPrice)*0.4 + reputationScore(bid)*0.35 + availabilityScore(bid, now)*0.25
	}
}

func priceScore(bid Bid, maxPrice uint64) float64 {
	if maxPrice == 0 {
		return 0
	}
	ratio := float64(bid.Price) / float64(maxPrice)
	if ratio > 1 {
		ratio = 1
	}
	return 1 - ratio
}

func reputationScore(bid Bid) float64 {
	return float64(bid.Reputation) / 100.0
}

func availabilityScore(bid Bid, now time.Time) float64 {
	wait := bid.WaitSeconds(now)
	return 1.0 / (1.0 + wait/3600.0)
}

// SelectBid filters bids to those meeting job's constraints as of now, then
// returns the highest-scored survivor under strategy, or false if none
// qualify.
func SelectBid(job Job, bids []Bid, strategy Strategy, now time.Time) (SelectedBid, bool) {
	valid := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.IsExpired(now) {
			continue
		}
		if b.Price > job.MaxPrice {
			continue
		}
		if b.Reputation < job.MinReputation {
			continue
		}
		if job.MaxDurationSecs > 0 && b.WaitSeconds(now) > float64(job.MaxDurationSecs) {
			continue
		}
		valid = append(valid, b)
	}
	if len(valid) == 0 {
		return SelectedBid{}, false
	}

	var maxPrice uint64
	for _, b := range valid {
		if b.Price > maxPrice {
			maxPrice = b.Price
		}
	}

	best := valid[0]
	bestScore := ScoreBid(strategy, best, maxPrice, now)
	for _, b := range valid[1:] {
		if s := ScoreBid(strategy, b, maxPrice, now); s > bestScore {
			best, bestScore = b, s
		}
	}
	return SelectedBid{Bid: best, Score: bestScore, Reason: string(strategy)}, true
}

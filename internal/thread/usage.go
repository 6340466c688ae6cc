package thread

// AddUsage accumulates a run's token/price deltas into the thread's usage
// counters, adds the price delta into the thread's own price (not the
// parent's — that only happens on Merge), and bumps Iterations by 1.
func (t *Thread) AddUsage(delta UsageDelta) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.usage.InputTokens += delta.InputTokens
	t.usage.OutputTokens += delta.OutputTokens
	t.usage.CacheReadTokens += delta.CacheReadTokens
	t.usage.CacheWriteTokens += delta.CacheWriteTokens
	t.usage.Price += delta.Price
	t.usage.Iterations++

	t.price += delta.Price
	t.bumpModified()
}

// ResetUsageForRun zeroes the run counters (tokens, iterations) without
// touching accumulated price, and installs the thresholds a run loop
// should enforce against iterations/price for this run.
func (t *Thread) ResetUsageForRun(iterationsThreshold int, priceThreshold float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usage = Usage{
		IterationsThreshold: iterationsThreshold,
		PriceThreshold:      priceThreshold,
	}
}

// ThresholdBreached reports whether the current run's iteration count or
// accumulated price has crossed its configured threshold, and which.
func (t *Thread) ThresholdBreached() (breached bool, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.usage.IterationsThreshold > 0 && t.usage.Iterations >= t.usage.IterationsThreshold {
		return true, "iterations"
	}
	if t.usage.PriceThreshold > 0 && t.usage.Price >= t.usage.PriceThreshold {
		return true, "price"
	}
	return false, ""
}

// SetRunStatus sets the fork's run status directly (used by the run loop
// and by team shutdown).
func (t *Thread) SetRunStatus(s RunStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runStatus = s
}

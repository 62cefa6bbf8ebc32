package indicator

// SMA calculates Simple Moving Average
// Returns slice of length: len(prices) - period + 1
func SMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result = append(result, sum/float64(period))

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result = append(result, sum/float64(period))
	}

	return result
}

// MovingAverage returns the trailing SMA aligned with prices: element i
// averages prices[i-window+1:i+1], and the first window-1 elements are nil.
// Empty when there is not enough history.
func MovingAverage(prices []float64, window int) []*float64 {
	return align(SMA(prices, window), len(prices), window)
}

// ExponentialAverage is EMA aligned the same way as MovingAverage.
func ExponentialAverage(prices []float64, window int) []*float64 {
	return align(EMA(prices, window), len(prices), window)
}

func align(series []float64, n, window int) []*float64 {
	if len(series) == 0 {
		return []*float64{}
	}

	out := make([]*float64, n)
	for i := range series {
		v := series[i]
		out[i+window-1] = &v
	}
	return out
}

// EMA calculates Exponential Moving Average
func EMA(prices []float64, period int) []float64 {
	if period <= 0 || len(prices) < period {
		return []float64{}
	}

	result := make([]float64, 0, len(prices)-period+1)
	multiplier := 2.0 / float64(period+1)

	// Start with SMA as first EMA value
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)
	result = append(result, ema)

	// Calculate EMA for remaining prices
	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*multiplier + ema
		result = append(result, ema)
	}

	return result
}

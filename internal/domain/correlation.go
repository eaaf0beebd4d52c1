package domain

// CorrelationMetrics are aggregate trading metrics for one wallet over
// a time window, computed from enriched trades sorted ascending by time.
type CorrelationMetrics struct {
	WalletAddress     string
	TotalValueUSD     float64
	TradeCount        int
	AverageTradeValue float64
	LargestTradeUSD   float64
	TokenPairs        map[string]int // "IN-OUT" symbol pair -> trade count
	StartTime         int64          // first trade timestamp (ms)
	EndTime           int64          // last trade timestamp (ms)
	AvgTradeGapMs     float64        // average inter-trade time gap
}

// CorrelatedEvent is one scored candidate event from the correlation engine.
type CorrelatedEvent struct {
	EventID    int64
	Confidence float64 // 0..1
	Reason     string
}

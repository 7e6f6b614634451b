package usage

// Buffer and batch limits for usage tracking.
const (
	// BatchFlushThreshold is the number of entries that triggers an immediate flush.
	BatchFlushThreshold = 100

	// DefaultTemperature and DefaultMaxTokens are recorded in request_params
	// when the client did not send them.
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 0
)

// Pagination limits for usage log queries.
const (
	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

package ports

import "time"

//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks

// Metrics records build statistics.
type Metrics interface {
	// ObserveBlock records one block build with its backend and outcome
	// ("succeeded", "cached" or the error kind).
	ObserveBlock(backend, outcome string, d time.Duration)
	// ObserveBatch records the duration and block count of one document build.
	ObserveBatch(blocks int, d time.Duration)
}

package ports

import "go.trai.ch/wasmblock/internal/core/domain"

// Extractor finds build blocks in a document.
//
//go:generate mockgen -source=extractor.go -destination=mocks/mock_extractor.go -package=mocks
type Extractor interface {
	// Extract returns the blocks of doc in document order.
	Extract(doc []byte) ([]domain.SourceBlock, error)
}

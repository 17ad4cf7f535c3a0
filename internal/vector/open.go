package vector

import (
	"context"
	"fmt"

	"studyrag/internal/config"
)

// Open builds the index selected by cfg.VectorStore and makes sure its
// collection exists. The returned func releases the client.
func Open(ctx context.Context, cfg config.Config, pg Queryer) (Index, func() error, error) {
	var idx Index
	release := func() error { return nil }
	switch cfg.VectorStore {
	case "", "qdrant":
		q, err := NewQdrantIndex(QdrantConfig{
			Host:       cfg.QdrantHost,
			Port:       cfg.QdrantPort,
			APIKey:     cfg.QdrantAPIKey,
			UseTLS:     cfg.QdrantUseTLS,
			Collection: cfg.QdrantCollection,
		})
		if err != nil {
			return nil, nil, err
		}
		idx, release = q, q.Close
	case "pgvector":
		idx = NewPGIndex(pg)
	case "memory":
		idx = NewMemoryIndex()
	default:
		return nil, nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
	if err := idx.EnsureCollection(ctx, cfg.EmbedDim); err != nil {
		_ = release()
		return nil, nil, err
	}
	return idx, release, nil
}

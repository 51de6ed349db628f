package render

import (
	"context"

	"go.uber.org/zap"
)

// Store persists rendered documents for later retrieval. The default
// implementation only logs; object storage plugs in behind it.
type Store interface {
	Save(ctx context.Context, invoiceID string, html string) error
}

type LogStore struct {
	log *zap.Logger
}

func NewLogStore(log *zap.Logger) Store {
	return &LogStore{log: log.Named("invoice.store")}
}

func (s *LogStore) Save(_ context.Context, invoiceID string, html string) error {
	s.log.Info("invoice document rendered",
		zap.String("invoice_id", invoiceID),
		zap.Int("size_bytes", len(html)),
	)
	return nil
}

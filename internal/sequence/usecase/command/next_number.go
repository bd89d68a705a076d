package command

import (
	"context"
	"fmt"
	"time"

	"github.com/spsweb/erp-core/internal/sequence/domain"
	"github.com/spsweb/erp-core/pkg/database"
	"github.com/spsweb/erp-core/pkg/logger"
	"github.com/spsweb/erp-core/pkg/metrics"
)

const (
	maxAttempts  = 3
	retryBackoff = 50 * time.Millisecond
)

// NextNumberCommand represents a request for the next sequence value
type NextNumberCommand struct {
	Company string
	Branch  string
	Scope   domain.Scope
}

// NextNumberHandler mints sequence numbers, retrying transient transaction
// conflicts with backoff before surfacing them.
type NextNumberHandler struct {
	generator domain.Generator
}

func NewNextNumberHandler(generator domain.Generator) *NextNumberHandler {
	return &NextNumberHandler{generator: generator}
}

func (h *NextNumberHandler) Handle(ctx context.Context, cmd NextNumberCommand) (int64, error) {
	if cmd.Scope.Type == "" {
		return 0, fmt.Errorf("scope type is required")
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		next, err := h.generator.Next(ctx, cmd.Company, cmd.Branch, cmd.Scope)
		if err == nil {
			metrics.SequencesIssued.WithLabelValues(cmd.Scope.Type).Inc()
			return next, nil
		}
		if !database.IsRetryable(err) {
			return 0, err
		}
		lastErr = err

		logger.Warn(ctx).
			Err(err).
			Str("scope_type", cmd.Scope.Type).
			Str("scope_qualifier", cmd.Scope.Qualifier).
			Int("attempt", attempt).
			Msg("Sequence transaction conflict, retrying")

		select {
		case <-time.After(time.Duration(attempt) * retryBackoff):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}

	return 0, fmt.Errorf("%w: %v", domain.ErrRetriesExhausted, lastErr)
}

package ports

import (
	"context"

	"github.com/kirillkom/grounded-answer/internal/core/domain"
)

// QueryAnswerer is the inbound contract for end-to-end answer generation.
type QueryAnswerer interface {
	Answer(ctx context.Context, query domain.Query) (*domain.Response, error)
}

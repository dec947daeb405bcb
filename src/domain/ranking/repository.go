package ranking

import (
	"context"

	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

// Repository persists one Entry per nickname.
//
// Submit must apply the read-modify-write as one atomic unit per nickname:
// of two concurrent submissions for the same nickname the higher always wins.
// Errors wrap shared.ErrStorageUnavailable or shared.ErrInternal.
type Repository interface {
	Submit(ctx context.Context, submission Submission) (Outcome, error)
	List(ctx context.Context, limit int) ([]Entry, error)
	Get(ctx context.Context, nickname shared.Nickname) (Entry, error)
	Position(ctx context.Context, entry Entry) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Ping(ctx context.Context) error
}

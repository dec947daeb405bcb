package ranking

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
}

func internal(err error) error {
	return fmt.Errorf("%w: %v", shared.ErrInternal, err)
}

// classify maps a driver error onto the storage error taxonomy. Transient
// faults a caller may retry become ErrStorageUnavailable; anything else is
// ErrInternal.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return unavailable(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgerrcode.IsConnectionException(pgErr.Code),
			pgerrcode.IsOperatorIntervention(pgErr.Code),
			pgerrcode.IsInsufficientResources(pgErr.Code),
			pgErr.Code == pgerrcode.SerializationFailure,
			pgErr.Code == pgerrcode.DeadlockDetected,
			pgErr.Code == pgerrcode.LockNotAvailable:
			return unavailable(err)
		}
		return internal(err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return unavailable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return unavailable(err)
	}
	return internal(err)
}

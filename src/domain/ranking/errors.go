package ranking

import (
	"fmt"

	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

var (
	ErrNicknameRequired = fmt.Errorf("%w: nickname is required", shared.ErrInvalidInput)
	ErrNicknameTooLong  = fmt.Errorf("%w: nickname is too long", shared.ErrInvalidInput)
	ErrScoreOutOfRange  = fmt.Errorf("%w: score is out of range", shared.ErrInvalidInput)
	ErrInvalidLimit     = fmt.Errorf("%w: limit must be positive", shared.ErrInvalidInput)
	ErrEntryNotFound    = fmt.Errorf("%w: ranking entry", shared.ErrNotFound)
)

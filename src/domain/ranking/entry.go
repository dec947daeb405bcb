package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

const (
	DefaultMaxNicknameLength = 50
	DefaultMaxScore          = 1000
)

// Bounds of the rankings table columns. Configured limits may be tighter,
// never wider.
const (
	StoredNicknameLength = 50
	StoredScoreMax       = math.MaxInt32
)

// Entry is one nickname's best score. CreatedAt is the time the current
// score was set, not the time the nickname was first seen.
type Entry struct {
	ID        int64
	Nickname  shared.Nickname
	Score     int
	CreatedAt time.Time
}

// Limits bounds what a submission may carry.
type Limits struct {
	MaxNicknameLength int
	MaxScore          int
}

func DefaultLimits() Limits {
	return Limits{
		MaxNicknameLength: DefaultMaxNicknameLength,
		MaxScore:          DefaultMaxScore,
	}
}

// Submission is a validated (nickname, score) pair ready to be merged into the store.
type Submission struct {
	Nickname    shared.Nickname
	Score       int
	SubmittedAt time.Time
}

// NewSubmission trims and validates the nickname and range-checks the score.
// Timestamps are kept at microsecond precision so that what is returned matches
// what a database round trip would yield.
func NewSubmission(nickname shared.Nickname, score int, submittedAt time.Time, limits Limits) (Submission, error) {
	nickname = nickname.Normalize()
	if err := nickname.Validate(); err != nil {
		return Submission{}, ErrNicknameRequired
	}
	maxLen := StoredNicknameLength
	if limits.MaxNicknameLength > 0 {
		maxLen = min(maxLen, limits.MaxNicknameLength)
	}
	if nickname.Len() > maxLen {
		return Submission{}, fmt.Errorf("%w: %d characters, at most %d allowed", ErrNicknameTooLong, nickname.Len(), maxLen)
	}
	maxScore := min(limits.MaxScore, StoredScoreMax)
	if score < 0 || score > maxScore {
		return Submission{}, fmt.Errorf("%w: %d not in [0, %d]", ErrScoreOutOfRange, score, maxScore)
	}
	return Submission{
		Nickname:    nickname,
		Score:       score,
		SubmittedAt: submittedAt.UTC().Truncate(time.Microsecond),
	}, nil
}

// Compare orders entries for the leaderboard: higher score first, then the
// earliest achiever of that score, then insertion order.
func Compare(a, b Entry) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort orders entries in place using Compare.
func Sort(entries []Entry) {
	slices.SortFunc(entries, Compare)
}

// Stats summarizes the leaderboard.
type Stats struct {
	Players  int
	TopScore int
}

package ranking

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

// MemoryRepository implements ranking.Repository using in-memory storage.
// State is lost on restart and is not shared between processes.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[shared.Nickname]*ranking.Entry
	seq     atomic.Int64
}

// NewMemoryRepository creates a new in-memory ranking repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[shared.Nickname]*ranking.Entry),
	}
}

// Submit merges a submission under the write lock, so the compare and the
// write cannot interleave with another submission.
func (r *MemoryRepository) Submit(ctx context.Context, s ranking.Submission) (ranking.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return ranking.Outcome{}, unavailable(err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.entries[s.Nickname]
	if !exists {
		entry := &ranking.Entry{
			ID:        r.seq.Inc(),
			Nickname:  s.Nickname,
			Score:     s.Score,
			CreatedAt: s.SubmittedAt,
		}
		r.entries[s.Nickname] = entry
		return ranking.Created(*entry), nil
	}

	if s.Score <= current.Score {
		return ranking.NotImproved(*current), nil
	}

	previous := current.Score
	current.Score = s.Score
	current.CreatedAt = s.SubmittedAt
	return ranking.Improved(previous, *current), nil
}

// List returns up to limit entries in leaderboard order.
func (r *MemoryRepository) List(ctx context.Context, limit int) ([]ranking.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	if limit <= 0 {
		return nil, ranking.ErrInvalidLimit
	}

	entries := r.snapshot()
	if limit < len(entries) {
		entries = entries[:limit]
	}
	return entries, nil
}

// Get retrieves the entry stored for a nickname.
func (r *MemoryRepository) Get(ctx context.Context, nickname shared.Nickname) (ranking.Entry, error) {
	if err := ctx.Err(); err != nil {
		return ranking.Entry{}, unavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[nickname]
	if !exists {
		return ranking.Entry{}, ranking.ErrEntryNotFound
	}
	return *entry, nil
}

// Position returns the 1-based leaderboard position of entry.
func (r *MemoryRepository) Position(ctx context.Context, entry ranking.Entry) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	position := 1
	for _, other := range r.entries {
		if ranking.Compare(*other, entry) < 0 {
			position++
		}
	}
	return position, nil
}

func (r *MemoryRepository) Stats(ctx context.Context) (ranking.Stats, error) {
	if err := ctx.Err(); err != nil {
		return ranking.Stats{}, unavailable(err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ranking.Stats{Players: len(r.entries)}
	for _, entry := range r.entries {
		stats.TopScore = max(stats.TopScore, entry.Score)
	}
	return stats, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (r *MemoryRepository) snapshot() []ranking.Entry {
	r.mu.RLock()
	entries := make([]ranking.Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, *entry)
	}
	r.mu.RUnlock()

	ranking.Sort(entries)
	return entries
}

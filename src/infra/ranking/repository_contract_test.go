package ranking

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/clickrank/src/domain/ranking"
	"github.com/bryanwahyu/clickrank/src/domain/shared"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func submission(t *testing.T, nickname string, score int, at time.Time) ranking.Submission {
	t.Helper()
	s, err := ranking.NewSubmission(shared.Nickname(nickname), score, at, ranking.DefaultLimits())
	require.NoError(t, err)
	return s
}

// runRepositoryContract exercises behaviour every ranking.Repository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) ranking.Repository) {
	ctx := context.Background()

	t.Run("submit sequence keeps best score", func(t *testing.T) {
		repo := newRepo(t)

		out, err := repo.Submit(ctx, submission(t, "Ana", 12, epoch))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeCreated, out.Kind)
		assert.Equal(t, 12, out.Best())
		assert.NotZero(t, out.Entry.ID)

		out, err = repo.Submit(ctx, submission(t, "Ana", 8, epoch.Add(time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeNotImproved, out.Kind)
		assert.Equal(t, 12, out.Previous)
		assert.True(t, out.Entry.CreatedAt.Equal(epoch), "not improved must keep the record timestamp")

		out, err = repo.Submit(ctx, submission(t, "Ana", 20, epoch.Add(2*time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeImproved, out.Kind)
		assert.Equal(t, 12, out.Previous)
		assert.Equal(t, 20, out.Best())
		assert.True(t, out.Entry.CreatedAt.Equal(epoch.Add(2*time.Minute)))

		entries, err := repo.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, shared.Nickname("Ana"), entries[0].Nickname)
		assert.Equal(t, 20, entries[0].Score)
		assert.True(t, entries[0].CreatedAt.Equal(epoch.Add(2*time.Minute)))
	})

	t.Run("equal score is not an improvement", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Submit(ctx, submission(t, "Ana", 12, epoch))
		require.NoError(t, err)
		out, err := repo.Submit(ctx, submission(t, "Ana", 12, epoch.Add(time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeNotImproved, out.Kind)
		assert.True(t, out.Entry.CreatedAt.Equal(epoch))
	})

	t.Run("zero score creates entry", func(t *testing.T) {
		repo := newRepo(t)

		out, err := repo.Submit(ctx, submission(t, "Zed", 0, epoch))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeCreated, out.Kind)

		entry, err := repo.Get(ctx, "Zed")
		require.NoError(t, err)
		assert.Equal(t, 0, entry.Score)
	})

	t.Run("ties ordered by earliest achiever", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Submit(ctx, submission(t, "Ana", 20, epoch))
		require.NoError(t, err)
		_, err = repo.Submit(ctx, submission(t, "Beto", 20, epoch.Add(time.Second)))
		require.NoError(t, err)
		_, err = repo.Submit(ctx, submission(t, "Caio", 25, epoch.Add(2*time.Second)))
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			entries, err := repo.List(ctx, 10)
			require.NoError(t, err)
			require.Len(t, entries, 3)
			assert.Equal(t, []shared.Nickname{"Caio", "Ana", "Beto"}, nicknames(entries))
		}
	})

	t.Run("nicknames are case sensitive", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Submit(ctx, submission(t, "ana", 5, epoch))
		require.NoError(t, err)
		out, err := repo.Submit(ctx, submission(t, "Ana", 3, epoch.Add(time.Second)))
		require.NoError(t, err)
		assert.Equal(t, ranking.OutcomeCreated, out.Kind)

		stats, err := repo.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, ranking.Stats{Players: 2, TopScore: 5}, stats)
	})

	t.Run("list respects limit and never repeats a nickname", func(t *testing.T) {
		repo := newRepo(t)

		for i := 0; i < 20; i++ {
			nick := fmt.Sprintf("player-%d", i%7)
			_, err := repo.Submit(ctx, submission(t, nick, i, epoch.Add(time.Duration(i)*time.Second)))
			require.NoError(t, err)
		}

		entries, err := repo.List(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, entries, 5)

		entries, err = repo.List(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, entries, 7)
		seen := map[shared.Nickname]bool{}
		for i, e := range entries {
			assert.False(t, seen[e.Nickname], "duplicate nickname %q", e.Nickname)
			seen[e.Nickname] = true
			if i > 0 {
				assert.LessOrEqual(t, ranking.Compare(entries[i-1], e), 0)
			}
		}

		_, err = repo.List(ctx, 0)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("get and position", func(t *testing.T) {
		repo := newRepo(t)

		_, err := repo.Get(ctx, "ghost")
		assert.True(t, errors.Is(err, shared.ErrNotFound), "got %v", err)

		_, err = repo.Submit(ctx, submission(t, "Ana", 20, epoch))
		require.NoError(t, err)
		_, err = repo.Submit(ctx, submission(t, "Beto", 20, epoch.Add(time.Second)))
		require.NoError(t, err)
		_, err = repo.Submit(ctx, submission(t, "Caio", 30, epoch.Add(2*time.Second)))
		require.NoError(t, err)

		want := map[shared.Nickname]int{"Caio": 1, "Ana": 2, "Beto": 3}
		for nick, pos := range want {
			entry, err := repo.Get(ctx, nick)
			require.NoError(t, err)
			got, err := repo.Position(ctx, entry)
			require.NoError(t, err)
			assert.Equal(t, pos, got, "position of %s", nick)
		}
	})

	t.Run("concurrent submissions for one nickname keep the max", func(t *testing.T) {
		repo := newRepo(t)

		scores := rand.Perm(60)
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			created int
		)
		subs := make([]ranking.Submission, 0, len(scores))
		for i, score := range scores {
			subs = append(subs, submission(t, "Ana", score, epoch.Add(time.Duration(i)*time.Millisecond)))
		}
		for _, sub := range subs {
			wg.Add(1)
			go func(sub ranking.Submission) {
				defer wg.Done()
				out, err := repo.Submit(ctx, sub)
				assert.NoError(t, err)
				if out.Kind == ranking.OutcomeCreated {
					mu.Lock()
					created++
					mu.Unlock()
				}
			}(sub)
		}
		wg.Wait()

		assert.Equal(t, 1, created)
		entry, err := repo.Get(ctx, "Ana")
		require.NoError(t, err)
		assert.Equal(t, 59, entry.Score)

		entries, err := repo.List(ctx, 100)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("simultaneous 10 and 15 settle on 15", func(t *testing.T) {
		for round := 0; round < 10; round++ {
			repo := newRepo(t)
			nick := fmt.Sprintf("racer-%d", round)

			var wg sync.WaitGroup
			start := make(chan struct{})
			for _, sub := range []ranking.Submission{submission(t, nick, 10, epoch), submission(t, nick, 15, epoch)} {
				wg.Add(1)
				go func(sub ranking.Submission) {
					defer wg.Done()
					<-start
					_, err := repo.Submit(ctx, sub)
					assert.NoError(t, err)
				}(sub)
			}
			close(start)
			wg.Wait()

			entry, err := repo.Get(ctx, shared.Nickname(nick))
			require.NoError(t, err)
			assert.Equal(t, 15, entry.Score)
		}
	})

	t.Run("ping", func(t *testing.T) {
		repo := newRepo(t)
		assert.NoError(t, repo.Ping(ctx))
	})
}

func nicknames(entries []ranking.Entry) []shared.Nickname {
	out := make([]shared.Nickname, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Nickname)
	}
	return out
}

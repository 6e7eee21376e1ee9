// Package repositorytest holds the behaviour every EmailRepository must share.
package repositorytest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsm-intake/internal/model"
	"fsm-intake/internal/repository"
)

// Factory builds an empty repository retaining at most max records.
type Factory func(t *testing.T, max int) repository.EmailRepository

// NewEmail builds a minimal record for store tests.
func NewEmail(id, subject string) *model.Email {
	return &model.Email{
		ID:          id,
		SenderName:  "Jane Doe",
		SenderEmail: "jane@example.com",
		Subject:     subject,
		ReceivedAt:  time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		Status:      model.StatusUnprocessed,
		Body:        "body of " + id,
	}
}

func Run(t *testing.T, factory Factory) {
	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			created, err := repo.Upsert(ctx, NewEmail(id, "subject "+id))
			require.NoError(t, err)
			assert.True(t, created)
		}

		emails, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, emails, 3)
		assert.Equal(t, []string{"c", "b", "a"}, ids(emails))
	})

	t.Run("UpsertReplacesInPlace", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		_, err := repo.Upsert(ctx, NewEmail("a", "first"))
		require.NoError(t, err)
		_, err = repo.Upsert(ctx, NewEmail("b", "other"))
		require.NoError(t, err)

		updated := NewEmail("a", "second")
		updated.Classification = model.ClassificationValid
		updated.Status = model.StatusQueryLogged
		updated.ExtractedQuery = &model.ExtractedQuery{ServiceType: "Repair"}
		created, err := repo.Upsert(ctx, updated)
		require.NoError(t, err)
		assert.False(t, created)

		emails, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, emails, 2)
		assert.Equal(t, []string{"b", "a"}, ids(emails))

		got, err := repo.FindByID(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Subject)
		assert.Equal(t, model.StatusQueryLogged, got.Status)
		require.NotNil(t, got.ExtractedQuery)
		assert.Equal(t, "Repair", got.ExtractedQuery.ServiceType)
	})

	t.Run("EvictsOldestOverCap", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		for i := 0; i <= repository.DefaultMaxEmails; i++ {
			_, err := repo.Upsert(ctx, NewEmail(fmt.Sprintf("id-%03d", i), "s"))
			require.NoError(t, err)
		}

		emails, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, emails, repository.DefaultMaxEmails)
		assert.NotContains(t, ids(emails), "id-000")
		assert.Equal(t, "id-100", emails[0].ID)

		_, err = repo.FindByID(ctx, "id-000")
		assert.ErrorIs(t, err, repository.ErrEmailNotFound)
	})

	t.Run("DeleteUnknownLeavesStoreUnchanged", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		_, err := repo.Upsert(ctx, NewEmail("a", "s"))
		require.NoError(t, err)

		removed, err := repo.Delete(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, removed)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("DeleteKnown", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			_, err := repo.Upsert(ctx, NewEmail(id, "s"))
			require.NoError(t, err)
		}

		removed, err := repo.Delete(ctx, "b")
		require.NoError(t, err)
		assert.True(t, removed)

		emails, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(emails))
	})

	t.Run("ClearReportsCount", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		for _, id := range []string{"a", "b", "c"} {
			_, err := repo.Upsert(ctx, NewEmail(id, "s"))
			require.NoError(t, err)
		}

		cleared, err := repo.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, cleared)

		emails, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, emails)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		repo := factory(t, repository.DefaultMaxEmails)
		ctx := context.Background()

		_, err := repo.Upsert(ctx, NewEmail("a", "original"))
		require.NoError(t, err)

		got, err := repo.FindByID(ctx, "a")
		require.NoError(t, err)
		got.Subject = "mutated"

		again, err := repo.FindByID(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "original", again.Subject)
	})
}

func ids(emails []*model.Email) []string {
	out := make([]string, len(emails))
	for i, e := range emails {
		out[i] = e.ID
	}
	return out
}

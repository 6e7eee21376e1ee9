package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsm-intake/internal/repository"
	"fsm-intake/internal/repository/repositorytest"
)

func TestInMemoryEmailRepository(t *testing.T) {
	repositorytest.Run(t, func(t *testing.T, max int) repository.EmailRepository {
		return NewInMemoryEmailRepositoryWithCap(max)
	})
}

func TestInMemoryEmailRepositoryCustomCap(t *testing.T) {
	repo := NewInMemoryEmailRepositoryWithCap(2)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := repo.Upsert(ctx, repositorytest.NewEmail(id, "s"))
		require.NoError(t, err)
	}

	emails, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "c", emails[0].ID)
	assert.Equal(t, "b", emails[1].ID)
}

func TestInMemoryEmailRepositoryConcurrentUpserts(t *testing.T) {
	repo := NewInMemoryEmailRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = repo.Upsert(ctx, repositorytest.NewEmail(fmt.Sprintf("id-%d", i%10), "s"))
		}(i)
	}
	wg.Wait()

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

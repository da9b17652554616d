package vault

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	domainvault "github.com/ketchup/backend/internal/domain/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeTokenRepository is an in-memory vault.Repository whose ConsumeByHash
// honours the conditional-write contract under concurrency.
type fakeTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]*domainvault.RedemptionToken
}

func newFakeTokenRepository() *fakeTokenRepository {
	return &fakeTokenRepository{tokens: make(map[string]*domainvault.RedemptionToken)}
}

func (r *fakeTokenRepository) Create(_ context.Context, token *domainvault.RedemptionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *token
	r.tokens[token.TokenHash] = &copied
	return nil
}

func (r *fakeTokenRepository) FindByHash(_ context.Context, tokenHash string) (*domainvault.RedemptionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	copied := *token
	return &copied, nil
}

func (r *fakeTokenRepository) FindByID(_ context.Context, id uuid.UUID) (*domainvault.RedemptionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.ID == id {
			copied := *token
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *fakeTokenRepository) ConsumeByHash(_ context.Context, tokenHash string, usedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[tokenHash]
	if !ok || token.UsedAt != nil {
		return false, nil
	}
	token.UsedAt = &usedAt
	return true, nil
}

func (r *fakeTokenRepository) DeleteExpiredUnused(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var deleted int64
	for hash, token := range r.tokens {
		if token.UsedAt == nil && token.ExpiresAt.Before(before) {
			delete(r.tokens, hash)
			deleted++
		}
	}
	return deleted, nil
}

func newTestService(t *testing.T) (*Service, *fakeTokenRepository) {
	repo := newFakeTokenRepository()
	return NewService(repo, zap.NewNop()), repo
}

func TestService_GenerateToken(t *testing.T) {
	svc, repo := newTestService(t)

	voucherID := uuid.New()
	expiresAt := time.Now().Add(24 * time.Hour)

	generated, err := svc.GenerateToken(context.Background(), voucherID, domainvault.PurposeG2P, expiresAt)

	require.NoError(t, err)
	assert.Len(t, generated.Token, 64)
	assert.Equal(t, voucherID, generated.VoucherID)

	// Only the hash is stored; the clear secret never reaches the repository
	stored, err := repo.FindByHash(context.Background(), domainvault.HashToken(generated.Token))
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.NotEqual(t, generated.Token, stored.TokenHash)
	assert.Nil(t, stored.UsedAt)
}

func TestService_GenerateToken_UniqueSecrets(t *testing.T) {
	svc, _ := newTestService(t)

	a, err := svc.GenerateToken(context.Background(), uuid.New(), domainvault.PurposeQR, time.Now().Add(time.Hour))
	require.NoError(t, err)
	b, err := svc.GenerateToken(context.Background(), uuid.New(), domainvault.PurposeQR, time.Now().Add(time.Hour))
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}

func TestService_ValidateToken(t *testing.T) {
	t.Run("valid token", func(t *testing.T) {
		svc, _ := newTestService(t)
		voucherID := uuid.New()
		generated, err := svc.GenerateToken(context.Background(), voucherID, domainvault.PurposeG2P, time.Now().Add(time.Hour))
		require.NoError(t, err)

		validation, err := svc.ValidateToken(context.Background(), generated.Token)

		require.NoError(t, err)
		assert.True(t, validation.Valid)
		assert.Equal(t, voucherID, validation.VoucherID)
		assert.Equal(t, domainvault.PurposeG2P, validation.Purpose)
	})

	t.Run("unknown token", func(t *testing.T) {
		svc, _ := newTestService(t)

		validation, err := svc.ValidateToken(context.Background(), "never-minted")

		require.NoError(t, err)
		assert.False(t, validation.Valid)
		assert.Equal(t, ReasonNotFound, validation.Reason)
	})

	t.Run("used token", func(t *testing.T) {
		svc, _ := newTestService(t)
		generated, err := svc.GenerateToken(context.Background(), uuid.New(), domainvault.PurposeG2P, time.Now().Add(time.Hour))
		require.NoError(t, err)

		won, err := svc.MarkTokenUsed(context.Background(), generated.Token)
		require.NoError(t, err)
		require.True(t, won)

		validation, err := svc.ValidateToken(context.Background(), generated.Token)
		require.NoError(t, err)
		assert.False(t, validation.Valid)
		assert.Equal(t, ReasonAlreadyUsed, validation.Reason)
	})

	t.Run("expired token", func(t *testing.T) {
		svc, repo := newTestService(t)
		token := &domainvault.RedemptionToken{
			ID:        uuid.New(),
			TokenHash: domainvault.HashToken("expired-secret"),
			VoucherID: uuid.New(),
			Purpose:   domainvault.PurposeOffline,
			ExpiresAt: time.Now().Add(-time.Minute),
			CreatedAt: time.Now().Add(-time.Hour),
		}
		require.NoError(t, repo.Create(context.Background(), token))

		validation, err := svc.ValidateToken(context.Background(), "expired-secret")

		require.NoError(t, err)
		assert.False(t, validation.Valid)
		assert.Equal(t, ReasonExpired, validation.Reason)
	})
}

func TestService_MarkTokenUsed_AtMostOnce(t *testing.T) {
	svc, _ := newTestService(t)
	generated, err := svc.GenerateToken(context.Background(), uuid.New(), domainvault.PurposeG2P, time.Now().Add(time.Hour))
	require.NoError(t, err)

	const callers = 50
	var wg sync.WaitGroup
	wins := make(chan bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := svc.MarkTokenUsed(context.Background(), generated.Token)
			assert.NoError(t, err)
			wins <- won
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestService_CleanupExpired(t *testing.T) {
	svc, repo := newTestService(t)

	// One long-expired unused token, one used, one live
	require.NoError(t, repo.Create(context.Background(), &domainvault.RedemptionToken{
		ID:        uuid.New(),
		TokenHash: domainvault.HashToken("stale"),
		VoucherID: uuid.New(),
		Purpose:   domainvault.PurposeG2P,
		ExpiresAt: time.Now().Add(-60 * 24 * time.Hour),
	}))
	used := time.Now()
	require.NoError(t, repo.Create(context.Background(), &domainvault.RedemptionToken{
		ID:        uuid.New(),
		TokenHash: domainvault.HashToken("used"),
		VoucherID: uuid.New(),
		Purpose:   domainvault.PurposeG2P,
		ExpiresAt: time.Now().Add(-60 * 24 * time.Hour),
		UsedAt:    &used,
	}))
	require.NoError(t, repo.Create(context.Background(), &domainvault.RedemptionToken{
		ID:        uuid.New(),
		TokenHash: domainvault.HashToken("live"),
		VoucherID: uuid.New(),
		Purpose:   domainvault.PurposeG2P,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	deleted, err := svc.CleanupExpired(context.Background(), 30*24*time.Hour)

	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

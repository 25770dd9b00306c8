package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genintake/backend/internal/domain/assessment"
)

func cachedVerdict(sessionID uuid.UUID) *assessment.AssessmentVerdict {
	outcome := assessment.Outcome{
		MeetsCriteria: true,
		CriteriaMet:   []string{"Relative with ovarian cancer"},
		RiskScore:     decimal.NewFromInt(80),
		RiskCategory:  assessment.RiskHigh,
		Confidence:    0.5,
	}
	return assessment.NewAssessmentVerdict(sessionID, outcome, assessment.NewClinicalFactRecord())
}

func TestInMemoryVerdictCache_SetAndGet(t *testing.T) {
	cache := NewInMemoryVerdictCache(1 * time.Hour)
	defer cache.Close()

	ctx := context.Background()
	sessionID := uuid.New()

	err := cache.Set(ctx, sessionID, cachedVerdict(sessionID))
	require.NoError(t, err)

	got, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, sessionID, got.SessionID)
	assert.True(t, got.MeetsCriteria)
	assert.Equal(t, "80.00", got.RiskScoreString())
}

func TestInMemoryVerdictCache_MissReturnsNil(t *testing.T) {
	cache := NewInMemoryVerdictCache(1 * time.Hour)
	defer cache.Close()

	got, err := cache.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got, "a miss is nil without error")
}

func TestInMemoryVerdictCache_ExpiredEntryIsAMiss(t *testing.T) {
	cache := NewInMemoryVerdictCache(10 * time.Millisecond)
	defer cache.Close()

	ctx := context.Background()
	sessionID := uuid.New()

	err := cache.Set(ctx, sessionID, cachedVerdict(sessionID))
	require.NoError(t, err)

	// Wait for expiration
	time.Sleep(20 * time.Millisecond)

	got, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	assert.Nil(t, got, "expired entry should read as a miss")
}

func TestInMemoryVerdictCache_SetOverwrites(t *testing.T) {
	cache := NewInMemoryVerdictCache(1 * time.Hour)
	defer cache.Close()

	ctx := context.Background()
	sessionID := uuid.New()

	first := cachedVerdict(sessionID)
	require.NoError(t, cache.Set(ctx, sessionID, first))

	second := cachedVerdict(sessionID)
	second.MeetsCriteria = false
	require.NoError(t, cache.Set(ctx, sessionID, second))

	got, err := cache.Get(ctx, sessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.MeetsCriteria, "later write wins for the same session")
	assert.Equal(t, 1, cache.Size())
}

func TestInMemoryVerdictCache_DropsExpired(t *testing.T) {
	cache := NewInMemoryVerdictCache(10 * time.Millisecond)
	defer cache.Close()

	ctx := context.Background()
	cache.Set(ctx, uuid.New(), cachedVerdict(uuid.New()))
	cache.Set(ctx, uuid.New(), cachedVerdict(uuid.New()))

	assert.Equal(t, 2, cache.Size())

	// Wait for entries to expire
	time.Sleep(20 * time.Millisecond)

	cache.dropExpired()

	assert.Equal(t, 0, cache.Size())
}

func TestInMemoryVerdictCache_Close(t *testing.T) {
	cache := NewInMemoryVerdictCache(1 * time.Hour)

	// Close should not panic and should return nil
	err := cache.Close()
	assert.NoError(t, err)

	// Multiple closes should be safe
	err = cache.Close()
	assert.NoError(t, err)
}

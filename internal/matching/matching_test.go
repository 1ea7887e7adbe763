package matching_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/expair-api/internal/matching"
	"github.com/rajivgeraev/expair-api/internal/storage/memory"
)

func TestBestOfferIntersection(t *testing.T) {
	store := memory.NewStore()
	engine := matching.NewEngine(store)
	candidate := uuid.New()
	viewer := uuid.New()

	store.SetUserSkills(candidate, []string{"Language & Translation", "Creative & Design", "Technical & IT"})
	store.SetUserInterests(viewer, []string{"Technical & IT", "Creative & Design"})

	// Из пересечения берётся лексикографически наименьшая категория
	offer, err := engine.BestOffer(context.Background(), candidate, &viewer)
	require.NoError(t, err)
	require.Equal(t, "Creative & Design", offer)
}

func TestBestOfferFallbackToFirstSkill(t *testing.T) {
	store := memory.NewStore()
	engine := matching.NewEngine(store)
	candidate := uuid.New()
	viewer := uuid.New()

	store.SetUserSkills(candidate, []string{"Wellness & Lifestyle", "Language & Translation"})
	store.SetUserInterests(viewer, []string{"Technical & IT"})

	// Пересечения нет: берётся наименьший навык кандидата
	offer, err := engine.BestOffer(context.Background(), candidate, &viewer)
	require.NoError(t, err)
	require.Equal(t, "Language & Translation", offer)

	// Без зрителя результат тот же
	offer, err = engine.BestOffer(context.Background(), candidate, nil)
	require.NoError(t, err)
	require.Equal(t, "Language & Translation", offer)
}

func TestBestOfferCatalogFallback(t *testing.T) {
	store := memory.NewStore()
	engine := matching.NewEngine(store)
	candidate := uuid.New()

	store.SetCatalog([]string{"Music & Audio", "Creative & Design"})

	// У кандидата нет навыков: берётся наименьшая категория каталога
	offer, err := engine.BestOffer(context.Background(), candidate, nil)
	require.NoError(t, err)
	require.Equal(t, "Creative & Design", offer)
}

func TestBestOfferDefaultCategory(t *testing.T) {
	store := memory.NewStore()
	engine := matching.NewEngine(store)

	// Ни навыков, ни каталога
	offer, err := engine.BestOffer(context.Background(), uuid.New(), nil)
	require.NoError(t, err)
	require.Equal(t, matching.DefaultCategory, offer)
}

func TestBestOfferDeterministic(t *testing.T) {
	store := memory.NewStore()
	engine := matching.NewEngine(store)
	candidate := uuid.New()
	viewer := uuid.New()

	store.SetUserSkills(candidate, []string{"Technical & IT", "Creative & Design", "Music & Audio"})
	store.SetUserInterests(viewer, []string{"Music & Audio", "Technical & IT"})

	first, err := engine.BestOffer(context.Background(), candidate, &viewer)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := engine.BestOffer(context.Background(), candidate, &viewer)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

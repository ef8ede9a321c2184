package watch_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

func product(id string) watch.Product {
	return watch.Product{
		ID:    id,
		Name:  "Figure " + id,
		URL:   "https://www.suruga-ya.com/en/product/" + id,
		Price: "1,000 yen",
	}
}

func snapshot(ids ...string) watch.ProductMap {
	m := watch.ProductMap{}
	for _, id := range ids {
		m[id] = product(id)
	}
	return m
}

func TestDiffAgainstSelfIsEmpty(t *testing.T) {
	t.Parallel()

	for _, p := range []watch.ProductMap{snapshot(), snapshot("1"), snapshot("1", "2", "3")} {
		require.Empty(t, watch.Diff(p, p))
	}
}

func TestDiffDisjointReturnsAllOfCurrent(t *testing.T) {
	t.Parallel()

	a := snapshot("1", "2")
	b := snapshot("3", "4", "5")

	added := watch.Diff(a, b)
	require.Len(t, added, len(b))
	for _, p := range added {
		require.Equal(t, b[p.ID], p)
	}
}

func TestDiffSingleAddition(t *testing.T) {
	t.Parallel()

	prev := snapshot("1", "2")
	cur := snapshot("1", "2", "3")

	require.Equal(t, []watch.Product{product("3")}, watch.Diff(prev, cur))
}

func TestDiffIgnoresRemovalsAndFieldChanges(t *testing.T) {
	t.Parallel()

	prev := snapshot("1", "2", "3")
	cur := snapshot("1", "2")
	changed := cur["1"]
	changed.Price = "9,999 yen"
	cur["1"] = changed

	require.Empty(t, watch.Diff(prev, cur))
}

func TestDiffFromEmptyPreviousIsOrderedByID(t *testing.T) {
	t.Parallel()

	added := watch.Diff(nil, snapshot("b", "c", "a"))
	require.Equal(t, []string{"a", "b", "c"}, []string{added[0].ID, added[1].ID, added[2].ID})
}

func TestDeepestCategory(t *testing.T) {
	t.Parallel()

	p := watch.Product{Categories: []watch.Category{{Name: "Hobby"}, {Name: "Figures"}, {Name: "Scale Figures"}}}
	require.Equal(t, "Scale Figures", p.DeepestCategory())
	require.Empty(t, watch.Product{}.DeepestCategory())
}

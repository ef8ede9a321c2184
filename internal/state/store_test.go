package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/surugaya-watcher/internal/hash/sha256"
	"github.com/JakeFAU/surugaya-watcher/internal/storage/memory"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

type failingBlobs struct {
	getErr error
	putErr error
	data   []byte
}

func (f *failingBlobs) GetObject(context.Context, string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.data, nil
}

func (f *failingBlobs) PutObject(context.Context, string, string, []byte) error {
	return f.putErr
}

func newStore(t *testing.T) (*Store, *memory.BlobStore) {
	t.Helper()
	blobs := memory.NewBlobStore()
	store, err := New(blobs, sha256.New())
	require.NoError(t, err)
	return store, blobs
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, sha256.New())
	require.Error(t, err)
	_, err = New(memory.NewBlobStore(), nil)
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	t.Parallel()

	store, blobs := newStore(t)
	topic := watch.Topic{Keyword: "figure", Category: "5"}
	products := watch.ProductMap{
		"1": {ID: "1", Name: "A", URL: "https://www.suruga-ya.com/en/product/1",
			Categories: []watch.Category{{Name: "Toys"}, {Name: "Figures"}}},
	}

	require.NoError(t, store.Save(context.Background(), topic, products))
	got, err := store.Load(context.Background(), topic)
	require.NoError(t, err)
	require.Equal(t, products, got)

	raw, err := blobs.GetObject(context.Background(), store.PathFor(topic)+".json")
	require.NoError(t, err)
	require.Contains(t, string(raw), `"1":{"id":"1"`)
}

func TestLoadMissing(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	_, err := store.Load(context.Background(), watch.Topic{Keyword: "never"})
	require.ErrorIs(t, err, watch.ErrStateNotFound)
	require.NotErrorIs(t, err, watch.ErrStorage)
}

func TestSaveEmptyMap(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	topic := watch.Topic{Keyword: "empty"}
	require.NoError(t, store.Save(context.Background(), topic, nil))
	got, err := store.Load(context.Background(), topic)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestPathFor(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	a := store.PathFor(watch.Topic{Keyword: "figure"})
	require.Equal(t, a, store.PathFor(watch.Topic{Keyword: "figure"}))
	require.NotEqual(t, a, store.PathFor(watch.Topic{Keyword: "figure", Category: "5"}))
	require.Len(t, a, 64)
	require.Equal(t, "last", store.PathFor(watch.Topic{Keyword: "figure", Key: "last"}))
}

func TestStorageFailures(t *testing.T) {
	t.Parallel()

	topic := watch.Topic{Keyword: "figure"}
	cases := []struct {
		name  string
		blobs *failingBlobs
		save  bool
	}{
		{name: "read error", blobs: &failingBlobs{getErr: errors.New("disk gone")}},
		{name: "corrupt document", blobs: &failingBlobs{data: []byte("{not json")}},
		{name: "write error", blobs: &failingBlobs{putErr: errors.New("read-only fs")}, save: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store, err := New(tc.blobs, sha256.New())
			require.NoError(t, err)
			if tc.save {
				err = store.Save(context.Background(), topic, watch.ProductMap{})
			} else {
				_, err = store.Load(context.Background(), topic)
			}
			require.ErrorIs(t, err, watch.ErrStorage)
		})
	}
}

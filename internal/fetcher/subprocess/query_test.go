package subprocess

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		topic watch.Topic
		want  string
	}{
		{
			name:  "keyword only",
			topic: watch.Topic{Keyword: "figure"},
			want:  "https://www.suruga-ya.com/en/products?btn_search=&keyword=figure&sort=updated_date_desc",
		},
		{
			name:  "empty keyword is still sent",
			topic: watch.Topic{Category: "5"},
			want:  "https://www.suruga-ya.com/en/products?btn_search=&category=5&keyword=&sort=updated_date_desc",
		},
		{
			name:  "escapes values",
			topic: watch.Topic{Keyword: "ねんどろいど 初音"},
			want: "https://www.suruga-ya.com/en/products?btn_search=&keyword=" +
				"%E3%81%AD%E3%82%93%E3%81%A9%E3%82%8D%E3%81%84%E3%81%A9+%E5%88%9D%E9%9F%B3&sort=updated_date_desc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, SearchURL("https://www.suruga-ya.com/", "/en/products", tt.topic))
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	products, skipped, err := Parse([]byte(`[
		{"id":"10","url":"/en/product/10","name":"A","categories":[{"name":"Games"}]},
		{"id":"11","url":"//cdn.example.com/11","name":"B"},
		{"name":"no id"}
	]`), "https://www.suruga-ya.com")
	require.NoError(t, err)
	require.Equal(t, 1, skipped)
	require.Equal(t, "https://www.suruga-ya.com/en/product/10", products["10"].URL)
	require.Equal(t, "//cdn.example.com/11", products["11"].URL)

	_, _, err = Parse([]byte("  \n"), "https://www.suruga-ya.com")
	require.ErrorIs(t, err, errEmptyOutput)

	for _, input := range []string{"null", " null\n", `{"id":"1"}`, `"[]"`, "0"} {
		products, _, err := Parse([]byte(input), "https://www.suruga-ya.com")
		require.ErrorIs(t, err, errNotArray, "input %q", input)
		require.Nil(t, products)
	}

	products, _, err = Parse([]byte("[]"), "https://www.suruga-ya.com")
	require.NoError(t, err)
	require.NotNil(t, products)
	require.Empty(t, products)
}

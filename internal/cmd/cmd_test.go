package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-engine/internal/models"
)

const feed = `{
	"products": [
		{"id": "hp-100", "name": "Wireless Headphones", "category": "audio", "price": 199.99, "rating": 4.7, "stock": 14, "popularity": 96},
		{"id": "lp-700", "name": "Desk Lamp", "category": "home", "price": 24, "rating": 3.9, "stock": 18, "popularity": 35}
	],
	"categories": ["audio", "home"]
}`

type cliEnv struct {
	feed    string
	storage string
}

func newCLIEnv(t *testing.T) cliEnv {
	t.Helper()
	dir := t.TempDir()
	feedPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(feedPath, []byte(feed), 0o644))
	t.Setenv("STORAGE_BACKEND", "file")
	t.Setenv("LOG_LEVEL", "error")
	return cliEnv{feed: feedPath, storage: filepath.Join(dir, "store")}
}

func (e cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--catalog", e.feed, "--storage-dir", e.storage}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestCLI_Search tests the search command output
func TestCLI_Search(t *testing.T) {
	// Arrange
	env := newCLIEnv(t)

	// Act
	out, err := env.run(t, "search", "lamp")

	// Assert
	require.NoError(t, err)
	var result models.SearchResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Items, 1)
	assert.Equal(t, "lp-700", result.Items[0].ID)
	assert.Equal(t, 1, result.Total)
}

// TestCLI_Product tests single product lookups
func TestCLI_Product(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "product", "hp-100")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "Wireless Headphones"`)

	_, err = env.run(t, "product", "zz-000")
	assert.ErrorContains(t, err, "product not found: zz-000")
}

// TestCLI_CartPersistsAcrossRuns tests that each invocation sees the stored cart
func TestCLI_CartPersistsAcrossRuns(t *testing.T) {
	// Arrange
	env := newCLIEnv(t)
	exportPath := filepath.Join(t.TempDir(), "cart.json")

	// Act
	_, err := env.run(t, "cart", "add", "hp-100", "2")
	require.NoError(t, err)
	_, err = env.run(t, "cart", "add", "lp-700")
	require.NoError(t, err)
	shown, err := env.run(t, "cart", "show")
	require.NoError(t, err)

	_, err = env.run(t, "cart", "export", "--output", exportPath)
	require.NoError(t, err)
	cleared, err := env.run(t, "cart", "clear")
	require.NoError(t, err)
	imported, err := env.run(t, "cart", "import", exportPath)
	require.NoError(t, err)

	// Assert
	var summary models.CartSummary
	require.NoError(t, json.Unmarshal([]byte(shown), &summary))
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, 2, summary.UniqueItems)
	assert.Equal(t, 423.98, summary.Subtotal)

	var afterClear models.CartSummary
	require.NoError(t, json.Unmarshal([]byte(cleared), &afterClear))
	assert.Zero(t, afterClear.ItemCount)

	var afterImport models.CartSummary
	require.NoError(t, json.Unmarshal([]byte(imported), &afterImport))
	assert.Equal(t, 3, afterImport.ItemCount)
}

// TestCLI_CartErrors tests that engine rejections surface as command errors
func TestCLI_CartErrors(t *testing.T) {
	env := newCLIEnv(t)

	testCases := []struct {
		name string
		args []string
		err  string
	}{
		{"unknown product", []string{"cart", "add", "zz-000"}, "zz-000"},
		{"bad quantity", []string{"cart", "add", "hp-100", "two"}, "invalid quantity"},
		{"over stock", []string{"cart", "add", "hp-100", "15"}, "stock"},
		{"update missing line", []string{"cart", "update", "lp-700", "3"}, "lp-700"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.run(t, tc.args...)
			assert.ErrorContains(t, err, tc.err)
		})
	}
}

package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/razoraze123/dolibar/internal/scraper"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func sampleResult() scraper.Result {
	return scraper.Result{
		Title: "Bob Ficelle",
		Variants: []scraper.Variant{
			{Name: "Beige", ImageURL: "https://cdn.example/bob-beige-453.webp"},
			{Name: "Noir", ImageURL: "https://cdn.example/bob-noir.webp"},
		},
	}
}

func TestWriteVariantsTxt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "variants.txt")
	require.NoError(t, WriteVariantsTxt(path, sampleResult()))

	want := "Beige : https://cdn.example/bob-beige-453.webp\n" +
		"Noir : https://cdn.example/bob-noir.webp\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestWriteLinksFormats(t *testing.T) {
	links := []scraper.ProductLink{
		{Name: "Bob Ficelle", URL: "https://shop.example/products/bob"},
		{Name: "Casquette", URL: "https://shop.example/products/casquette"},
	}
	dir := t.TempDir()

	txt := filepath.Join(dir, "links.txt")
	require.NoError(t, WriteLinksTxt(txt, links))
	assert.Equal(t,
		"https://shop.example/products/bob\nhttps://shop.example/products/casquette\n",
		readFile(t, txt))

	jsonPath := filepath.Join(dir, "links.json")
	require.NoError(t, WriteLinksJSON(jsonPath, links))
	var decoded []scraper.ProductLink
	require.NoError(t, json.Unmarshal([]byte(readFile(t, jsonPath)), &decoded))
	assert.Equal(t, links, decoded)

	csvPath := filepath.Join(dir, "links.csv")
	require.NoError(t, WriteLinksCSV(csvPath, links))
	rows, err := csv.NewReader(strings.NewReader(readFile(t, csvPath))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"name", "url"},
		{"Bob Ficelle", "https://shop.example/products/bob"},
		{"Casquette", "https://shop.example/products/casquette"},
	}, rows)
}

func TestWriteURLsTxt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "published.txt")
	require.NoError(t, WriteURLsTxt(path, []string{
		"https://wp.example/wp-content/uploads/2024/05/bob-beige.webp",
		"https://wp.example/wp-content/uploads/2024/05/bob-noir.webp",
	}))

	want := "https://wp.example/wp-content/uploads/2024/05/bob-beige.webp\n" +
		"https://wp.example/wp-content/uploads/2024/05/bob-noir.webp\n"
	assert.Equal(t, want, readFile(t, path))
}

func TestWritePublishCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "publish.csv")
	require.NoError(t, WritePublishCSV(path, sampleResult(), "https://wp.example", "2024/05"))

	rows, err := csv.NewReader(strings.NewReader(readFile(t, path))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{
		"Beige",
		"https://cdn.example/bob-beige-453.webp",
		"https://wp.example/wp-content/uploads/2024/05/bob-beige.webp",
	}, rows[1])
}

func TestAtomicWriteLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, WriteVariantsTxt(path, sampleResult()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.txt", entries[0].Name())
}

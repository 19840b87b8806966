package images

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePhrases(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phrases.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPhraseLoaderLoad(t *testing.T) {
	path := writePhrases(t, `{"Bob Ficelle": ["chapeau tendance", "bob en coton"]}`)

	index := NewPhraseLoader().Load(path)
	phrase := index.PhraseFor("bob ficelle")
	assert.Contains(t, []string{"chapeau tendance", "bob en coton"}, phrase)
}

func TestPhraseLoaderMemoizes(t *testing.T) {
	path := writePhrases(t, `{"bob": ["premier"]}`)
	loader := NewPhraseLoader()

	assert.Equal(t, "premier", loader.Load(path).PhraseFor("bob"))

	require.NoError(t, os.WriteFile(path, []byte(`{"bob": ["second"]}`), 0o644))
	assert.Equal(t, "premier", loader.Load(path).PhraseFor("bob"))
}

func TestPhraseLoaderToleratesBadFile(t *testing.T) {
	loader := NewPhraseLoader()

	assert.Empty(t, loader.Load(filepath.Join(t.TempDir(), "missing.json")))
	assert.Empty(t, loader.Load(writePhrases(t, `not json at all`)))
	assert.Empty(t, loader.Load(""))
}

func TestPhraseForUnknownProduct(t *testing.T) {
	index := PhraseIndex{"bob": {"phrase"}}
	assert.Equal(t, "", index.PhraseFor("casquette"))
	assert.Equal(t, "", PhraseIndex{}.PhraseFor("bob"))
}

func TestPhraseIndexHas(t *testing.T) {
	index := PhraseIndex{"bob": {"phrase"}, "vide": {}}
	assert.True(t, index.Has("Bob"))
	assert.False(t, index.Has("vide"))
	assert.False(t, index.Has("casquette"))
}

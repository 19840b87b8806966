package images

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PhraseIndex maps a product key to the alternative phrases its downloaded
// images may be renamed after.
type PhraseIndex map[string][]string

// PhraseFor picks one phrase for the product, or "" when the product has
// none. Keys are matched case-insensitively.
func (p PhraseIndex) PhraseFor(product string) string {
	phrases, ok := p[strings.ToLower(product)]
	if !ok || len(phrases) == 0 {
		return ""
	}
	return phrases[rand.Intn(len(phrases))]
}

// Has reports whether the product has at least one phrase.
func (p PhraseIndex) Has(product string) bool {
	return len(p[strings.ToLower(product)]) > 0
}

// PhraseLoader reads phrase index files and memoizes them by path, so a
// batch of pages sharing one index parses it once.
type PhraseLoader struct {
	cache  *lru.Cache[string, PhraseIndex]
	logger *slog.Logger
}

func NewPhraseLoader() *PhraseLoader {
	cache, _ := lru.New[string, PhraseIndex](16)
	return &PhraseLoader{
		cache:  cache,
		logger: slog.Default().With("component", "alt_phrases"),
	}
}

// Load parses the JSON phrase file at path. An unreadable or malformed file
// is logged and yields an empty index; renaming is an enhancement, never a
// reason to fail a download run.
func (l *PhraseLoader) Load(path string) PhraseIndex {
	if path == "" {
		return PhraseIndex{}
	}
	if cached, ok := l.cache.Get(path); ok {
		return cached
	}

	index, err := readPhraseFile(path)
	if err != nil {
		l.logger.Warn("alt phrase file unusable", "path", path, "error", err)
		index = PhraseIndex{}
	}

	l.cache.Add(path, index)
	return index
}

func readPhraseFile(path string) (PhraseIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase file: %w", err)
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse phrase file: %w", err)
	}

	index := make(PhraseIndex, len(raw))
	for key, phrases := range raw {
		index[strings.ToLower(strings.TrimSpace(key))] = phrases
	}
	return index, nil
}

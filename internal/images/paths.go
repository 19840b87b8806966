package images

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWordChars    = regexp.MustCompile(`[^\p{L}\p{N}_-]`)
	whitespaceRun   = regexp.MustCompile(`\s+`)
	unsafeNameChars = regexp.MustCompile(`[^a-z0-9_-]`)
	asciiFoldChain  = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// PathRegistry tracks destination paths claimed by in-flight writes so two
// concurrent tasks can never pick the same filename. A path is claimed the
// moment it is chosen, before any I/O, which closes the window between
// "check exists" and "create file". A registry is scoped to one batch;
// across batches the on-disk check takes over.
type PathRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func NewPathRegistry() *PathRegistry {
	return &PathRegistry{paths: make(map[string]struct{})}
}

// Reserve returns a free path for filename under folder, appending _1, _2,
// ... before the extension until the name is neither on disk nor already
// claimed. Check and claim happen in one critical section.
func (r *PathRegistry) Reserve(folder, filename string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	candidate := filepath.Join(folder, filename)
	for counter := 1; r.taken(candidate); counter++ {
		candidate = filepath.Join(folder, fmt.Sprintf("%s_%d%s", base, counter, ext))
	}

	r.paths[candidate] = struct{}{}
	return candidate
}

func (r *PathRegistry) taken(path string) bool {
	if _, reserved := r.paths[path]; reserved {
		return true
	}
	_, err := os.Stat(path)
	return err == nil
}

// SafeFolder creates and returns the destination folder for a product,
// with non-word characters of the name collapsed to underscores.
func SafeFolder(parentDir, productName string) (string, error) {
	safe := nonWordChars.ReplaceAllString(productName, "_")
	folder := filepath.Join(parentDir, safe)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("create folder %s: %w", folder, err)
	}
	return folder, nil
}

// CleanFilename turns free text into a safe ascii file name: accents
// stripped, lowercased, whitespace collapsed to underscores.
func CleanFilename(text string) string {
	folded, _, err := transform.String(asciiFoldChain, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToLower(folded)
	folded = whitespaceRun.ReplaceAllString(folded, "_")
	return unsafeNameChars.ReplaceAllString(folded, "")
}

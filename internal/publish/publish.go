// Package publish derives the canonical CDN-style URLs under which scraped
// images are republished on a WordPress/WooCommerce media library.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// sizeSuffix matches the "-640"-style size variant storefronts append right
// before the file extension.
var sizeSuffix = regexp.MustCompile(`-\d+(\.\w+)$`)

var imageExtensions = map[string]bool{
	".webp": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// NormalizeScheme resolves a protocol-relative URL to https. Any other
// form is returned unchanged.
func NormalizeScheme(rawURL string) string {
	if strings.HasPrefix(rawURL, "//") {
		return "https:" + rawURL
	}
	return rawURL
}

// Filename extracts the canonical file name from an image URL: the last
// path segment, without query string and without a trailing -<digits> size
// suffix. Applying it to its own output yields the same name.
func Filename(imageURL string) string {
	name := imageURL
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "?"); i >= 0 {
		name = name[:i]
	}
	return sizeSuffix.ReplaceAllString(name, "$1")
}

// URL composes the published URL for an image previously uploaded to the
// wp-content media library. Pure function, no I/O.
func URL(domain, datePath, imageURL string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	datePath = strings.Trim(strings.TrimSpace(datePath), "/")
	return fmt.Sprintf("%s/wp-content/uploads/%s/%s", domain, datePath, Filename(imageURL))
}

// FolderLinks walks a local folder of downloaded images and returns the
// published URL for every image file found, in directory-walk order.
func FolderLinks(domain, datePath, folder string) ([]string, error) {
	var links []string
	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !imageExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		links = append(links, URL(domain, datePath, info.Name()))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", folder, err)
	}
	return links, nil
}

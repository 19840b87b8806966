package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/razoraze123/dolibar/internal/publish"
	"github.com/razoraze123/dolibar/internal/scraper"
)

// WriteVariantsTxt writes one "name : image url" line per variant.
func WriteVariantsTxt(path string, result scraper.Result) error {
	var b strings.Builder
	for _, v := range result.Variants {
		fmt.Fprintf(&b, "%s : %s\n", v.Name, v.ImageURL)
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteLinksTxt writes one product URL per line.
func WriteLinksTxt(path string, links []scraper.ProductLink) error {
	var b strings.Builder
	for _, link := range links {
		b.WriteString(link.URL)
		b.WriteByte('\n')
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteURLsTxt writes one URL per line.
func WriteURLsTxt(path string, urls []string) error {
	var b strings.Builder
	for _, u := range urls {
		b.WriteString(u)
		b.WriteByte('\n')
	}
	return atomicWrite(path, []byte(b.String()))
}

// WriteLinksJSON writes the collection listing as indented JSON.
func WriteLinksJSON(path string, links []scraper.ProductLink) error {
	data, err := json.MarshalIndent(links, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	return atomicWrite(path, data)
}

// WriteLinksCSV writes the collection listing as name,url rows.
func WriteLinksCSV(path string, links []scraper.ProductLink) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"name", "url"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, link := range links {
		if err := w.Write([]string{link.Name, link.URL}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return atomicWrite(path, buf.Bytes())
}

// WritePublishCSV maps each variant image to the URL it will have once
// uploaded to the target site, as variant,source_url,published_url rows.
func WritePublishCSV(path string, result scraper.Result, domain, datePath string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"variant", "source_url", "published_url"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, v := range result.Variants {
		row := []string{v.Name, v.ImageURL, publish.URL(domain, datePath, v.ImageURL)}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return atomicWrite(path, buf.Bytes())
}

// atomicWrite goes through a temp file and a rename so a crash never
// leaves a half-written export behind.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

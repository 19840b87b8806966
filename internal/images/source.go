package images

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/razoraze123/dolibar/internal/browser"
	"github.com/razoraze123/dolibar/internal/publish"
)

var (
	// ErrNoImageSource marks an img element with no usable src, data-src or
	// data-srcset attribute.
	ErrNoImageSource = errors.New("element has no image source")
	// ErrImageDecode marks an inline data URI whose payload cannot be decoded.
	ErrImageDecode = errors.New("inline image payload is not valid base64")
	// ErrImageFetch marks a remote download that failed or returned a non-200.
	ErrImageFetch = errors.New("image fetch failed")
)

// imageSource is the resolved origin of one gallery image: either inline
// bytes ready to write, or a remote URL to fetch.
type imageSource struct {
	data     []byte
	remote   string
	filename string
}

func (s imageSource) inline() bool { return len(s.data) > 0 }

// resolveSource extracts the image origin from an img element. Attributes
// are tried in order src, data-src, data-srcset; a srcset value is reduced
// to the URL of its last candidate. Inline data URIs are decoded here;
// index numbers the element within the batch and seeds the inline filename.
func resolveSource(elem browser.Element, index int) (imageSource, error) {
	raw := firstAttribute(elem, "src", "data-src")
	if raw == "" {
		if srcset, _ := elem.Attribute("data-srcset"); srcset != "" {
			raw = lastSrcsetCandidate(srcset)
		}
	}
	if raw == "" {
		return imageSource{}, ErrNoImageSource
	}

	if strings.HasPrefix(raw, "data:image/") {
		return decodeDataURI(raw, index)
	}

	raw = publish.NormalizeScheme(raw)
	return imageSource{
		remote:   raw,
		filename: publish.Filename(raw),
	}, nil
}

func firstAttribute(elem browser.Element, names ...string) string {
	for _, name := range names {
		if value, err := elem.Attribute(name); err == nil && value != "" {
			return value
		}
	}
	return ""
}

// lastSrcsetCandidate picks the URL of the final candidate in a srcset
// value, conventionally the largest rendition.
func lastSrcsetCandidate(srcset string) string {
	candidates := strings.Split(srcset, ",")
	last := strings.TrimSpace(candidates[len(candidates)-1])
	if last == "" {
		return ""
	}
	return strings.Fields(last)[0]
}

// decodeDataURI splits a data:image/<fmt>;base64,<payload> URI into its
// bytes and a synthetic filename derived from the declared format.
func decodeDataURI(uri string, index int) (imageSource, error) {
	header, payload, found := strings.Cut(uri, ",")
	if !found {
		return imageSource{}, fmt.Errorf("%w: missing payload separator", ErrImageDecode)
	}

	format := "png"
	if rest, ok := strings.CutPrefix(header, "data:image/"); ok {
		if semi := strings.IndexByte(rest, ';'); semi > 0 {
			format = rest[:semi]
		}
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return imageSource{}, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}

	return imageSource{
		data:     data,
		filename: fmt.Sprintf("image_base64_%d.%s", index, format),
	}, nil
}

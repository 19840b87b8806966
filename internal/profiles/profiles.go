package profiles

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Platform is the storefront engine a profile targets.
type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformUnknown     Platform = "unknown"
)

// Profile bundles the selectors that work for one storefront.
type Profile struct {
	Name                string    `json:"name"`
	Host                string    `json:"host"`
	Platform            Platform  `json:"platform"`
	VariantSelector     string    `json:"variant_selector,omitempty"`
	GallerySelector     string    `json:"gallery_selector,omitempty"`
	ImageSelector       string    `json:"image_selector,omitempty"`
	PriceSelector       string    `json:"price_selector,omitempty"`
	DescriptionSelector string    `json:"description_selector,omitempty"`
	LinkSelector        string    `json:"link_selector,omitempty"`
	AddedAt             time.Time `json:"added_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Store keeps site profiles in a JSON file, written atomically on every
// mutation.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*Profile
	filename string
}

func NewStore(filename string) (*Store, error) {
	s := &Store{
		profiles: make(map[string]*Profile),
		filename: filename,
	}
	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *Store) Save(profile *Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profile.Name == "" {
		return fmt.Errorf("profile name is required")
	}

	now := time.Now()
	if existing, ok := s.profiles[profile.Name]; ok {
		profile.AddedAt = existing.AddedAt
	} else {
		profile.AddedAt = now
	}
	profile.UpdatedAt = now
	if profile.Platform == "" {
		profile.Platform = DetectPlatform(profile.Host)
	}

	s.profiles[profile.Name] = profile
	return s.persist()
}

func (s *Store) Get(name string) (*Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profile, ok := s.profiles[name]
	return profile, ok
}

// ForURL finds the profile whose host matches the page URL.
func (s *Store) ForURL(rawURL string) (*Profile, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, false
	}
	host := strings.TrimPrefix(parsed.Hostname(), "www.")

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, profile := range s.profiles {
		if strings.TrimPrefix(profile.Host, "www.") == host {
			return profile, true
		}
	}
	return nil, false
}

func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profiles[name]; !ok {
		return fmt.Errorf("profile not found: %s", name)
	}
	delete(s.profiles, name)
	return s.persist()
}

// List returns all profiles sorted by name.
func (s *Store) List() []*Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Profile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		list = append(list, profile)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// DetectPlatform guesses the storefront engine from its host name.
func DetectPlatform(host string) Platform {
	host = strings.ToLower(host)
	switch {
	case strings.Contains(host, "myshopify"), strings.Contains(host, "shopify"):
		return PlatformShopify
	case strings.Contains(host, "wp"), strings.Contains(host, "woocommerce"):
		return PlatformWooCommerce
	default:
		return PlatformUnknown
	}
}

func (s *Store) persist() error {
	data, err := json.MarshalIndent(s.profiles, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filename)
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, &s.profiles)
}

package catalog

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"
)

// stubStore serves canned listings and downloads keyed by prefix.
type stubStore struct {
	listings  map[string][]string
	downloads map[string][]byte
	listCalls []string
	listErr   error
}

func (s *stubStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.listCalls = append(s.listCalls, prefix)
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.listings[prefix], nil
}

func (s *stubStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, ok := s.downloads[key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func allThemesWith(assets []string) map[string][]string {
	listings := make(map[string][]string)
	for _, theme := range Themes {
		listings["themes/female/"+theme] = assets
	}
	return listings
}

func TestCatalog_ResolvePicksAsset(t *testing.T) {
	store := &stubStore{
		listings:  allThemesWith([]string{"hero.png"}),
		downloads: map[string][]byte{},
	}
	for _, theme := range Themes {
		store.downloads["themes/female/"+theme+"/hero.png"] = []byte("png-bytes")
	}

	c := New(store, rand.New(rand.NewSource(1)))

	data, err := c.Resolve(context.Background(), "Female")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("unexpected asset bytes: %q", data)
	}
	if len(store.listCalls) != 1 {
		t.Errorf("expected a single listing, got %d", len(store.listCalls))
	}
	if !strings.HasPrefix(store.listCalls[0], "themes/female/") {
		t.Errorf("gender must be lowercased in the prefix, got %q", store.listCalls[0])
	}
}

func TestCatalog_FiltersNonImages(t *testing.T) {
	store := &stubStore{
		listings:  allThemesWith([]string{"readme.txt", "hero.JPG", ".keep"}),
		downloads: map[string][]byte{},
	}
	for _, theme := range Themes {
		store.downloads["themes/male/"+theme+"/hero.JPG"] = []byte("jpg")
		store.listings["themes/male/"+theme] = []string{"readme.txt", "hero.JPG", ".keep"}
	}

	c := New(store, rand.New(rand.NewSource(7)))

	data, err := c.Resolve(context.Background(), "male")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if string(data) != "jpg" {
		t.Errorf("expected the only image asset, got %q", data)
	}
}

func TestCatalog_RetriesOnceOnEmptyTheme(t *testing.T) {
	// Every theme is empty except one; run many seeds so both the
	// first-pick-hits and first-pick-misses paths are exercised.
	for seed := int64(0); seed < 20; seed++ {
		store := &stubStore{
			listings:  map[string][]string{},
			downloads: map[string][]byte{"themes/male/fantasy_kingdom/knight.png": []byte("ok")},
		}
		for _, theme := range Themes {
			store.listings["themes/male/"+theme] = nil
		}
		store.listings["themes/male/fantasy_kingdom"] = []string{"knight.png"}

		c := New(store, rand.New(rand.NewSource(seed)))

		data, err := c.Resolve(context.Background(), "male")
		if len(store.listCalls) > 2 {
			t.Fatalf("seed %d: more than one retry: %d listings", seed, len(store.listCalls))
		}
		if err == nil {
			if string(data) != "ok" {
				t.Errorf("seed %d: unexpected bytes %q", seed, data)
			}
			continue
		}
		// A failed run must be the empty-retry path, not something else.
		if !errors.Is(err, ErrNoCharacter) {
			t.Errorf("seed %d: expected ErrNoCharacter, got %v", seed, err)
		}
		if len(store.listCalls) != 2 {
			t.Errorf("seed %d: expected exactly one retry before failing, got %d listings", seed, len(store.listCalls))
		}
	}
}

func TestCatalog_BothListingsEmpty(t *testing.T) {
	store := &stubStore{listings: map[string][]string{}}

	c := New(store, rand.New(rand.NewSource(3)))

	_, err := c.Resolve(context.Background(), "female")
	if !errors.Is(err, ErrNoCharacter) {
		t.Fatalf("expected ErrNoCharacter, got %v", err)
	}
	if len(store.listCalls) != 2 {
		t.Errorf("expected exactly two listings (initial + one retry), got %d", len(store.listCalls))
	}
}

func TestCatalog_ListErrorDegradesToNoCharacter(t *testing.T) {
	store := &stubStore{listErr: errors.New("storage unreachable")}

	c := New(store, rand.New(rand.NewSource(5)))

	_, err := c.Resolve(context.Background(), "male")
	if !errors.Is(err, ErrNoCharacter) {
		t.Fatalf("expected ErrNoCharacter, got %v", err)
	}
}

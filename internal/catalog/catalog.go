// Package catalog resolves themed character images for face-swap targets.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrNoCharacter is returned when no character image could be resolved for
// the requested gender.
var ErrNoCharacter = errors.New("no character image available")

// Themes are the fixed theme folders under themes/{gender}/ in the bucket.
var Themes = []string{
	"sustainability_champions",
	"space_explorer",
	"cyberpunk_future",
	"futuristic_workspace",
	"extreme_sports",
	"fantasy_kingdom",
}

// ObjectLister is the slice of the storage gateway the catalog needs.
type ObjectLister interface {
	// List returns the object names directly under the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Download returns the bytes of the object at the given key.
	Download(ctx context.Context, key string) ([]byte, error)
}

// Catalog picks a random character image for a gender: first a random theme,
// then a random asset within it. An empty theme listing is retried exactly
// once against a different random theme.
type Catalog struct {
	store ObjectLister
	mu    sync.Mutex
	rng   *rand.Rand
}

// New creates a Catalog backed by the given object store. A nil rng seeds
// one from the current time; tests inject a fixed-seed source.
func New(store ObjectLister, rng *rand.Rand) *Catalog {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Catalog{store: store, rng: rng}
}

// Resolve returns the bytes of a randomly chosen character image for the
// given gender, or ErrNoCharacter.
func (c *Catalog) Resolve(ctx context.Context, gender string) ([]byte, error) {
	candidates := make([]string, len(Themes))
	copy(candidates, Themes)

	theme := c.pick(candidates)
	prefix := themePrefix(gender, theme)

	assets, err := c.listImages(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCharacter, err)
	}

	if len(assets) == 0 {
		log.Warn().Str("prefix", prefix).Msg("no character images in theme, retrying once")

		candidates = remove(candidates, theme)
		if len(candidates) == 0 {
			return nil, ErrNoCharacter
		}
		theme = c.pick(candidates)
		prefix = themePrefix(gender, theme)

		assets, err = c.listImages(ctx, prefix)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCharacter, err)
		}
		if len(assets) == 0 {
			return nil, ErrNoCharacter
		}
	}

	key := prefix + "/" + assets[c.index(len(assets))]
	log.Info().Str("key", key).Msg("selected character image")

	data, err := c.store.Download(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrNoCharacter, key, err)
	}
	return data, nil
}

func (c *Catalog) listImages(ctx context.Context, prefix string) ([]string, error) {
	names, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	images := make([]string, 0, len(names))
	for _, n := range names {
		if isImage(n) {
			images = append(images, n)
		}
	}
	return images, nil
}

func (c *Catalog) pick(themes []string) string {
	return themes[c.index(len(themes))]
}

func (c *Catalog) index(n int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Intn(n)
}

func themePrefix(gender, theme string) string {
	return fmt.Sprintf("themes/%s/%s", strings.ToLower(gender), theme)
}

func isImage(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".png") ||
		strings.HasSuffix(lower, ".jpg") ||
		strings.HasSuffix(lower, ".jpeg")
}

func remove(themes []string, theme string) []string {
	for i, t := range themes {
		if t == theme {
			return append(themes[:i], themes[i+1:]...)
		}
	}
	return themes
}

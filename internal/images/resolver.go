// Package images maps SKUs to item image files using a fixed, case and separator
// tolerant search order.
package images

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	PlaceholderPath = "/images/items/placeholder.webp"
	itemDir         = "images/items/"
	maxTrimRounds   = 4
)

var (
	suffixes   = []string{"", "A", "a", "B", "b"}
	extensions = []string{".webp", ".png"}
)

// Store answers whether a file exists under the public web root.
type Store interface {
	Exists(relativePath string) bool
}

// DirStore checks files below a directory on local disk.
type DirStore struct {
	Root string
}

func (d DirStore) Exists(relativePath string) bool {
	if d.Root == "" || relativePath == "" {
		return false
	}
	clean := filepath.Clean("/" + relativePath)
	info, err := os.Stat(filepath.Join(d.Root, clean))
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

type Resolver struct {
	store Store
}

func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the web path of the first existing candidate image for sku,
// or PlaceholderPath.
func (r *Resolver) Resolve(sku string) string {
	sku = strings.TrimSpace(sku)
	if sku == "" || r.store == nil {
		return PlaceholderPath
	}

	for _, base := range Candidates(sku) {
		for _, suffix := range suffixes {
			for _, ext := range extensions {
				name := itemDir + base + suffix + ext
				if r.store.Exists(name) {
					return "/" + name
				}
			}
		}
	}
	return PlaceholderPath
}

// Candidates lists base file names for sku in search order, without duplicates.
func Candidates(sku string) []string {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}

	out := make([]string, 0, 32)
	seen := make(map[string]struct{}, 32)
	add := func(names []string) {
		for _, name := range names {
			if name == "" {
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	lower := strings.ToLower(sku)
	add(variants(sku))
	add(variants(lower))

	trimmedOrig, trimmedLower := sku, lower
	for round := 0; round < maxTrimRounds; round++ {
		trimmedOrig = trimLastToken(trimmedOrig)
		trimmedLower = trimLastToken(trimmedLower)
		if trimmedOrig == "" && trimmedLower == "" {
			break
		}
		add(variants(trimmedOrig))
		add(variants(trimmedLower))
	}
	return out
}

func variants(x string) []string {
	if x == "" {
		return nil
	}
	stripped := strings.NewReplacer("-", "", "_", "").Replace(x)
	return []string{
		x,
		strings.ToUpper(x),
		strings.ToLower(x),
		strings.ReplaceAll(x, "-", "_"),
		strings.ReplaceAll(x, "_", "-"),
		stripped,
		strings.ToLower(stripped),
	}
}

// trimLastToken drops the trailing -/_ delimited token. It returns "" when x has no separator.
func trimLastToken(x string) string {
	idx := strings.LastIndexAny(x, "-_")
	if idx <= 0 {
		return ""
	}
	return x[:idx]
}

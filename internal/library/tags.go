package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mwantia/folio/pkg/db/models"
	"github.com/mwantia/folio/pkg/db/store"
)

// maxTagLength mirrors the tag.name column size.
const maxTagLength = 50

// TagRegistry normalizes labels and guarantees one row per label.
type TagRegistry struct {
	Store store.MetadataStore `fabric:"inject"`
}

func NewTagRegistry(s store.MetadataStore) *TagRegistry {
	return &TagRegistry{Store: s}
}

// NormalizeTag trims and lower-cases a label. An empty result means the
// label is dropped.
func NormalizeTag(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// SplitTags splits the comma separated tags form field.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// NormalizeTags returns the distinct normalized labels in first-seen order.
func NormalizeTags(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	names := make([]string, 0, len(labels))

	for _, label := range labels {
		name := NormalizeTag(label)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Resolve returns one Tag per distinct normalized label, creating missing
// tags. Concurrent resolution of the same new label yields the same row.
func (r *TagRegistry) Resolve(ctx context.Context, labels []string) ([]models.Tag, error) {
	names := NormalizeTags(labels)
	tags := make([]models.Tag, 0, len(names))

	for _, name := range names {
		if utf8.RuneCountInString(name) > maxTagLength {
			return nil, invalid("tags", "tag '%s' exceeds %d characters", name, maxTagLength)
		}

		tag, err := r.getOrCreate(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve tag '%s': %w", name, err)
		}
		tags = append(tags, *tag)
	}

	return tags, nil
}

// Lookup finds an existing tag by its normalized label.
func (r *TagRegistry) Lookup(ctx context.Context, label string) (*models.Tag, error) {
	name := NormalizeTag(label)
	if name == "" {
		return nil, fmt.Errorf("tag '%s': %w", label, ErrNotFound)
	}

	tag, err := r.Store.GetTagByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("tag '%s': %w", name, ErrNotFound)
	}
	return tag, err
}

// List returns every tag ordered by name.
func (r *TagRegistry) List(ctx context.Context) ([]models.Tag, error) {
	return r.Store.ListTags(ctx)
}

func (r *TagRegistry) getOrCreate(ctx context.Context, name string) (*models.Tag, error) {
	tag, err := r.Store.GetTagByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	// The unique index decides races; a losing insert is a no-op and the
	// winner's row is read back below.
	if err := r.Store.CreateTag(ctx, name); err != nil {
		return nil, err
	}
	return r.Store.GetTagByName(ctx, name)
}

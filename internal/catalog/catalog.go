// Package catalog resolves read-only exercise definitions through a local cache.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"

	"example.com/progression/internal/domain"
	"example.com/progression/internal/observability"
)

const (
	oneHour        = 60 * 60
	exerciseExpire = oneHour * 6
	megabyte       = 1024 * 1024
)

// Source loads exercises that are missing from the cache.
type Source interface {
	ExercisesByIDs(ctx context.Context, ids []string) ([]domain.Exercise, error)
}

// Catalog is a read-through exercise cache.
type Catalog struct {
	source Source
	cache  *freecache.Cache
}

// New constructs a Catalog with a cache of sizeMB megabytes.
func New(source Source, sizeMB int) *Catalog {
	if sizeMB <= 0 {
		sizeMB = 8
	}
	return &Catalog{source: source, cache: freecache.NewCache(sizeMB * megabyte)}
}

// Lookup returns the known exercises among ids keyed by id. Unknown ids are absent from the map.
func (c *Catalog) Lookup(ctx context.Context, ids []string) (found map[string]domain.Exercise, err error) {
	ctx, span := observability.Tracer.Start(ctx, "catalog.lookup")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	found = make(map[string]domain.Exercise, len(ids))
	missing := make([]string, 0)
	for _, id := range ids {
		raw, getErr := c.cache.Get([]byte(cacheKey(id)))
		if getErr != nil {
			missing = append(missing, id)
			continue
		}
		var ex domain.Exercise
		if err := json.Unmarshal(raw, &ex); err != nil {
			log.Errorf("failed to unmarshal cached exercise %s: %s", id, err)
			missing = append(missing, id)
			continue
		}
		found[id] = ex
	}
	if len(missing) == 0 {
		return found, nil
	}

	loaded, err := c.source.ExercisesByIDs(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("load exercises: %w", err)
	}
	for _, ex := range loaded {
		found[ex.ID] = ex
		c.store(ex)
	}
	return found, nil
}

// Verify returns EXERCISE_NOT_FOUND unless every id resolves.
func (c *Catalog) Verify(ctx context.Context, ids []string) error {
	found, err := c.Lookup(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			return &domain.Error{Kind: domain.KindValidation, Code: domain.ErrExerciseNotFound.Code, Message: fmt.Sprintf("exercise %s not found", id)}
		}
	}
	return nil
}

// Invalidate drops cached entries, used after catalog seeding.
func (c *Catalog) Invalidate(ids ...string) {
	if len(ids) == 0 {
		c.cache.Clear()
		return
	}
	for _, id := range ids {
		c.cache.Del([]byte(cacheKey(id)))
	}
}

func (c *Catalog) store(ex domain.Exercise) {
	raw, err := json.Marshal(ex)
	if err != nil {
		log.Errorf("failed to marshal exercise %s: %s", ex.ID, err)
		return
	}
	if err := c.cache.Set([]byte(cacheKey(ex.ID)), raw, exerciseExpire); err != nil {
		log.Errorf("failed to cache exercise %s: %s", ex.ID, err)
	}
}

func cacheKey(id string) string {
	return "exercise::" + id
}

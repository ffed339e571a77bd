package taxonomy

import (
	"context"
	"strings"
	"sync"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/parser"
	"github.com/robinjoseph08/golib/logger"
)

// GenreStore persists genres.
type GenreStore interface {
	ListGenres(ctx context.Context) ([]*models.Genre, error)
	CreateGenre(ctx context.Context, genre *models.Genre) error
}

// TagStore persists tags.
type TagStore interface {
	ListTags(ctx context.Context) ([]*models.Tag, error)
	CreateTag(ctx context.Context, tag *models.Tag) error
}

// PersonStore persists people.
type PersonStore interface {
	ListPeople(ctx context.Context) ([]*models.Person, error)
	CreatePerson(ctx context.Context, person *models.Person) error
}

// CollectionStore persists collections.
type CollectionStore interface {
	ListCollections(ctx context.Context) ([]*models.Collection, error)
	CreateCollection(ctx context.Context, collection *models.Collection) error
}

// Store is the full persistence surface the cache needs.
type Store interface {
	GenreStore
	TagStore
	PersonStore
	CollectionStore
}

// Cache is a get-or-create cache for shared taxonomy entities, scoped to one
// scan generation: Prime before scanning, Reset after. Each kind holds its
// own lock so creating a genre never blocks a concurrent person lookup.
//
// On a cache miss the entity is persisted immediately, so a uniqueness
// violation surfaces here rather than inside some unrelated batch commit. A
// conflict is logged and reported as a nil entity; the caller skips the one
// attachment and the entity is picked up on the next scan.
type Cache struct {
	log   logger.Logger
	store Store

	genreMu sync.Mutex
	genres  map[string]*models.Genre

	tagMu sync.Mutex
	tags  map[string]*models.Tag

	personMu sync.Mutex
	people   map[string]*models.Person

	collectionMu sync.Mutex
	collections  map[string]*models.Collection
}

func NewCache(log logger.Logger, store Store) *Cache {
	c := &Cache{log: log, store: store}
	c.Reset()
	return c
}

// personKey builds the cache key for a person. Identity is the pair
// (normalized name, role).
func personKey(normalizedName, role string) string {
	return normalizedName + "_" + role
}

// Prime loads every existing taxonomy entity into memory so a scan starts
// with a warm cache.
func (c *Cache) Prime(ctx context.Context) error {
	genres, err := c.store.ListGenres(ctx)
	if err != nil {
		return err
	}
	tags, err := c.store.ListTags(ctx)
	if err != nil {
		return err
	}
	people, err := c.store.ListPeople(ctx)
	if err != nil {
		return err
	}
	collections, err := c.store.ListCollections(ctx)
	if err != nil {
		return err
	}

	c.genreMu.Lock()
	for _, genre := range genres {
		c.genres[genre.NormalizedName] = genre
	}
	c.genreMu.Unlock()

	c.tagMu.Lock()
	for _, tag := range tags {
		c.tags[tag.NormalizedName] = tag
	}
	c.tagMu.Unlock()

	c.personMu.Lock()
	for _, person := range people {
		c.people[personKey(person.NormalizedName, person.Role)] = person
	}
	c.personMu.Unlock()

	c.collectionMu.Lock()
	for _, collection := range collections {
		c.collections[collection.NormalizedName] = collection
	}
	c.collectionMu.Unlock()

	return nil
}

// Reset drops all cached entities, ending the scan generation.
func (c *Cache) Reset() {
	c.genreMu.Lock()
	c.genres = map[string]*models.Genre{}
	c.genreMu.Unlock()

	c.tagMu.Lock()
	c.tags = map[string]*models.Tag{}
	c.tagMu.Unlock()

	c.personMu.Lock()
	c.people = map[string]*models.Person{}
	c.personMu.Unlock()

	c.collectionMu.Lock()
	c.collections = map[string]*models.Collection{}
	c.collectionMu.Unlock()
}

// GetGenre returns the genre with the given name, creating and persisting it
// on first sight. A nil genre with nil error means a creation conflict; the
// caller skips the attachment.
func (c *Cache) GetGenre(ctx context.Context, name string) (*models.Genre, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	normalized := parser.Normalize(name)

	c.genreMu.Lock()
	defer c.genreMu.Unlock()

	if genre, ok := c.genres[normalized]; ok {
		return genre, nil
	}

	genre := &models.Genre{Name: name, NormalizedName: normalized}
	if err := c.store.CreateGenre(ctx, genre); err != nil {
		if errcodes.IsConflict(err) {
			c.log.Warn("genre creation conflict", logger.Data{"name": name})
			return nil, nil
		}
		return nil, err
	}

	c.genres[normalized] = genre
	return genre, nil
}

// GetTag returns the tag with the given name, creating it on first sight.
func (c *Cache) GetTag(ctx context.Context, name string) (*models.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	normalized := parser.Normalize(name)

	c.tagMu.Lock()
	defer c.tagMu.Unlock()

	if tag, ok := c.tags[normalized]; ok {
		return tag, nil
	}

	tag := &models.Tag{Name: name, NormalizedName: normalized}
	if err := c.store.CreateTag(ctx, tag); err != nil {
		if errcodes.IsConflict(err) {
			c.log.Warn("tag creation conflict", logger.Data{"name": name})
			return nil, nil
		}
		return nil, err
	}

	c.tags[normalized] = tag
	return tag, nil
}

// GetPerson returns the person with the given name and role, creating them on
// first sight. The same human name under two roles is two entries.
func (c *Cache) GetPerson(ctx context.Context, name, role string) (*models.Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	normalized := parser.Normalize(name)
	key := personKey(normalized, role)

	c.personMu.Lock()
	defer c.personMu.Unlock()

	if person, ok := c.people[key]; ok {
		return person, nil
	}

	person := &models.Person{Name: name, NormalizedName: normalized, Role: role}
	if err := c.store.CreatePerson(ctx, person); err != nil {
		if errcodes.IsConflict(err) {
			c.log.Warn("person creation conflict", logger.Data{"name": name, "role": role})
			return nil, nil
		}
		return nil, err
	}

	c.people[key] = person
	return person, nil
}

// GetCollection returns the collection with the given name, creating it on
// first sight.
func (c *Cache) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}
	normalized := parser.Normalize(name)

	c.collectionMu.Lock()
	defer c.collectionMu.Unlock()

	if collection, ok := c.collections[normalized]; ok {
		return collection, nil
	}

	collection := &models.Collection{Name: name, NormalizedName: normalized}
	if err := c.store.CreateCollection(ctx, collection); err != nil {
		if errcodes.IsConflict(err) {
			c.log.Warn("collection creation conflict", logger.Data{"name": name})
			return nil, nil
		}
		return nil, err
	}

	c.collections[normalized] = collection
	return collection, nil
}

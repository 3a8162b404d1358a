package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/store"
)

// CategoryRepository owns the user's category set. Names are unique per
// user; transactions refer to categories by name only, so renaming or
// deleting a category never touches existing transactions.
type CategoryRepository struct {
	state
	d      *deps
	logger *log.Logger

	// writeMu serializes name uniqueness checks with their writes.
	writeMu sync.Mutex

	mu         sync.RWMutex
	categories []core.Category
}

func newCategoryRepository(d *deps) *CategoryRepository {
	return &CategoryRepository{d: d, logger: d.logger.WithComponent(log.ComponentCategory)}
}

// List loads the user's categories, newest first.
func (r *CategoryRepository) List(ctx context.Context) ([]core.Category, error) {
	const op = "category.list"
	r.begin()
	cats, err := r.list(ctx, op)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpList, err)
		return nil, err
	}
	r.mu.Lock()
	r.categories = cats
	r.mu.Unlock()
	return cloneCategories(cats), nil
}

func (r *CategoryRepository) list(ctx context.Context, op string) ([]core.Category, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return nil, err
	}
	recs, err := s.Select(ctx, store.Categories, store.Query{
		Order: []store.Order{{Field: store.FieldCreatedAt, Desc: true}},
	})
	if err != nil {
		return nil, core.E(core.KindStore, op, err)
	}
	cats := make([]core.Category, 0, len(recs))
	for _, rec := range recs {
		cats = append(cats, store.DecodeCategory(rec))
	}
	return cats, nil
}

// Create stores a category and prepends it to the collection.
func (r *CategoryRepository) Create(ctx context.Context, in core.NewCategory) (core.Category, error) {
	const op = "category.create"
	if err := in.Validate(); err != nil {
		err = core.E(core.KindValidation, op, err)
		r.fail(err)
		return core.Category{}, err
	}
	r.begin()
	c, err := r.create(ctx, op, in)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpCreate, err)
		return core.Category{}, err
	}
	r.mu.Lock()
	r.categories = append([]core.Category{c}, r.categories...)
	r.mu.Unlock()
	return c, nil
}

func (r *CategoryRepository) create(ctx context.Context, op string, in core.NewCategory) (core.Category, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Category{}, err
	}
	name := strings.TrimSpace(in.Name)

	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.ensureUnique(ctx, s, op, name, ""); err != nil {
		return core.Category{}, err
	}
	rec, err := s.Insert(ctx, store.Categories, store.EncodeCategory(core.Category{Name: name, Color: in.Color}))
	if err != nil {
		return core.Category{}, core.E(core.KindStore, op, err)
	}
	return store.DecodeCategory(rec), nil
}

// Update merge-patches a category by id.
func (r *CategoryRepository) Update(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error) {
	const op = "category.update"
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		err := core.E(core.KindValidation, op, core.ErrEmptyName)
		r.fail(err)
		return core.Category{}, err
	}
	r.begin()
	c, err := r.update(ctx, op, id, patch)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpUpdate, err)
		return core.Category{}, err
	}
	r.mu.Lock()
	for i := range r.categories {
		if r.categories[i].ID == c.ID {
			r.categories[i] = c
		}
	}
	r.mu.Unlock()
	return c, nil
}

func (r *CategoryRepository) update(ctx context.Context, op, id string, patch core.CategoryPatch) (core.Category, error) {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return core.Category{}, err
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	rec := store.Record{}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if err := r.ensureUnique(ctx, s, op, name, id); err != nil {
			return core.Category{}, err
		}
		rec[store.FieldName] = name
	}
	if patch.Color != nil {
		rec[store.FieldColor] = *patch.Color
	}
	out, err := s.Update(ctx, store.Categories, id, rec)
	if errors.Is(err, store.ErrNotFound) {
		return core.Category{}, core.E(core.KindNotFound, op, err)
	}
	if err != nil {
		return core.Category{}, core.E(core.KindStore, op, err)
	}
	return store.DecodeCategory(out), nil
}

// Delete removes a category by id.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	const op = "category.delete"
	r.begin()
	err := r.delete(ctx, op, id)
	r.end(err)
	if err != nil {
		r.logFailure(ctx, log.OpDelete, err)
		return err
	}
	r.mu.Lock()
	for i, c := range r.categories {
		if c.ID == id {
			r.categories = append(r.categories[:i:i], r.categories[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *CategoryRepository) delete(ctx context.Context, op, id string) error {
	s, _, err := r.d.scope(ctx, op)
	if err != nil {
		return err
	}
	err = s.Delete(ctx, store.Categories, id)
	if errors.Is(err, store.ErrNotFound) {
		return core.E(core.KindNotFound, op, err)
	}
	return core.E(core.KindStore, op, err)
}

// Seed creates every category in seed whose name the user does not have
// yet and returns how many were added.
func (r *CategoryRepository) Seed(ctx context.Context, seed []core.NewCategory) (int, error) {
	if _, err := r.List(ctx); err != nil {
		return 0, err
	}
	have := make(map[string]bool)
	for _, c := range r.Categories() {
		have[c.Name] = true
	}
	added := 0
	for _, in := range seed {
		name := strings.TrimSpace(in.Name)
		if name == "" || have[name] {
			continue
		}
		if _, err := r.Create(ctx, in); err != nil {
			return added, err
		}
		have[name] = true
		added++
	}
	if added > 0 {
		r.logger.InfoContext(ctx, "Categories seeded",
			log.FieldOperation, log.OpSeed,
			log.FieldCount, added)
	}
	return added, nil
}

func (r *CategoryRepository) ensureUnique(ctx context.Context, s store.Store, op, name, selfID string) error {
	recs, err := s.Select(ctx, store.Categories, store.Query{Filter: store.Filter{store.FieldName: name}})
	if err != nil {
		return core.E(core.KindStore, op, err)
	}
	for _, rec := range recs {
		if rec.ID() != selfID {
			return core.E(core.KindValidation, op, fmt.Errorf("%w: %s", core.ErrDuplicateName, name))
		}
	}
	return nil
}

// Categories returns a copy of the in-memory collection.
func (r *CategoryRepository) Categories() []core.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneCategories(r.categories)
}

// Names returns the category names in collection order.
func (r *CategoryRepository) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.categories))
	for _, c := range r.categories {
		names = append(names, c.Name)
	}
	return names
}

func (r *CategoryRepository) logFailure(ctx context.Context, op string, err error) {
	r.logger.ErrorContext(ctx, "Category operation failed",
		log.NewFields().
			WithOperation(op).
			WithError(err).
			ToSlice()...)
}

func cloneCategories(in []core.Category) []core.Category {
	return append([]core.Category(nil), in...)
}

// SeedFile is the YAML layout of a category seed file:
//
//	categories:
//	  - name: Food
//	    color: "#f97316"
type SeedFile struct {
	Categories []struct {
		Name  string `yaml:"name"`
		Color string `yaml:"color"`
	} `yaml:"categories"`
}

// DefaultSeed builds the seed from core.DefaultCategories.
func DefaultSeed() []core.NewCategory {
	out := make([]core.NewCategory, 0, len(core.DefaultCategories))
	for _, name := range core.DefaultCategories {
		out = append(out, core.NewCategory{Name: name})
	}
	return out
}

// LoadSeed reads a YAML seed file. An empty path or a missing file yields
// DefaultSeed.
func LoadSeed(path string) ([]core.NewCategory, error) {
	if path == "" {
		return DefaultSeed(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultSeed(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	out := make([]core.NewCategory, 0, len(f.Categories))
	seen := make(map[string]bool)
	for _, c := range f.Categories {
		name := strings.TrimSpace(c.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, core.NewCategory{Name: name, Color: c.Color})
	}
	return out, nil
}

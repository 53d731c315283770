package catalog

// Store exposes the model allow-list.
type Store interface {
	List() []Model
	FindByID(id string) (Model, bool)
	Default() (Model, bool)
}

// MemoryStore implements Store with an in-memory slice.
type MemoryStore struct {
	items []Model
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied models.
// Duplicate ids keep their first occurrence.
func NewMemoryStore(items []Model) *MemoryStore {
	seen := make(map[string]struct{}, len(items))
	kept := make([]Model, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}
		kept = append(kept, item)
	}
	return &MemoryStore{items: kept}
}

// List returns the allow-list in display order.
func (s *MemoryStore) List() []Model {
	return append([]Model(nil), s.items...)
}

// FindByID looks up a model by identifier.
func (s *MemoryStore) FindByID(id string) (Model, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return Model{}, false
}

// Default returns the first model, which is preselected in the UI.
func (s *MemoryStore) Default() (Model, bool) {
	if len(s.items) == 0 {
		return Model{}, false
	}
	return s.items[0], true
}

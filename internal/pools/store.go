package pools

import (
	"context"
	"path/filepath"
	"sort"

	"ironnas/backend/irond/internal/fsatomic"
)

// Store persists pool metadata as a single JSON document under the state
// directory. All mutations run under an advisory file lock so concurrent
// workflows cannot interleave read-modify-write cycles.
type Store struct {
	path string
}

func NewStore(stateDir string) *Store {
	return &Store{path: filepath.Join(stateDir, "pools.json")}
}

type storeDoc struct {
	Pools []Metadata `json:"pools"`
}

func (s *Store) load() (storeDoc, error) {
	var doc storeDoc
	_, err := fsatomic.LoadJSON(s.path, &doc)
	return doc, err
}

func (s *Store) Get(guid string) (Metadata, bool, error) {
	doc, err := s.load()
	if err != nil {
		return Metadata{}, false, err
	}
	for _, m := range doc.Pools {
		if m.GUID == guid {
			return m, true, nil
		}
	}
	return Metadata{}, false, nil
}

func (s *Store) ListAll() ([]Metadata, error) {
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(doc.Pools, func(i, j int) bool { return doc.Pools[i].CreatedAt.Before(doc.Pools[j].CreatedAt) })
	return doc.Pools, nil
}

// Update inserts or replaces the record with meta's GUID.
func (s *Store) Update(meta Metadata) error {
	return fsatomic.WithLock(s.path, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		replaced := false
		for i := range doc.Pools {
			if doc.Pools[i].GUID == meta.GUID {
				doc.Pools[i] = meta
				replaced = true
				break
			}
		}
		if !replaced {
			doc.Pools = append(doc.Pools, meta)
		}
		return fsatomic.SaveJSON(context.TODO(), s.path, doc, 0o600)
	})
}

// Remove drops the record for guid. Removing an absent record is not an error.
func (s *Store) Remove(guid string) error {
	return fsatomic.WithLock(s.path, func() error {
		doc, err := s.load()
		if err != nil {
			return err
		}
		out := doc.Pools[:0]
		for _, m := range doc.Pools {
			if m.GUID != guid {
				out = append(out, m)
			}
		}
		doc.Pools = out
		return fsatomic.SaveJSON(context.TODO(), s.path, doc, 0o600)
	})
}

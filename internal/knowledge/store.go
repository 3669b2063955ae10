// Package knowledge persists pattern records and answers relationship
// queries.
//
// The durable side is a badger-backed table of PatternRecord values plus
// per-file findings; the relationship side is an in-memory directed graph
// replaced wholesale by BuildGraph. Every persistence failure surfaces as a
// knowledge_store error, never as a raw storage-engine error.
package knowledge

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/siftlab/sift/internal/detect"
	"github.com/siftlab/sift/internal/errs"
)

// Key prefixes for the different record families.
const (
	prefixPattern  = "p:"
	prefixFindings = "f:"
	seqKey         = "seq:pattern"
)

// PatternRecord is one persisted pattern. Records are owned by the store;
// callers never mutate a payload after storage except through
// UpdateFrequency.
type PatternRecord struct {
	ID          uint64         `json:"id"`
	PatternType string         `json:"pattern_type"`
	Payload     map[string]any `json:"payload"`
	Frequency   int            `json:"frequency"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Store is the knowledge store.
type Store struct {
	mu  sync.RWMutex
	db  *badger.DB
	seq *badger.Sequence

	// In-memory relationship graph, rebuilt wholesale by BuildGraph.
	succ map[string]map[string]bool
	pred map[string]map[string]bool
}

// Open opens or creates the store at the given path.
func Open(path string, readOnly bool) (*Store, error) {
	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR)
	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Open", err)
	}

	s := &Store{
		db:   db,
		succ: make(map[string]map[string]bool),
		pred: make(map[string]map[string]bool),
	}
	if !readOnly {
		seq, err := db.GetSequence([]byte(seqKey), 64)
		if err != nil {
			_ = db.Close()
			return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Open", err)
		}
		s.seq = seq
	}
	return s, nil
}

// Close releases the sequence and the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq != nil {
		_ = s.seq.Release()
		s.seq = nil
	}
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.Close", err)
	}
	return nil
}

// Store inserts a new pattern record. Frequency below one is clamped to
// one. An empty type or nil payload fails with invalid_pattern.
func (s *Store) Store(patternType string, payload map[string]any, frequency int) (*PatternRecord, error) {
	if patternType == "" {
		return nil, errs.Errorf(errs.KindInvalidPattern, "knowledge.Store", "missing pattern type")
	}
	if payload == nil {
		return nil, errs.Errorf(errs.KindInvalidPattern, "knowledge.Store", "missing payload")
	}
	if frequency < 1 {
		frequency = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seq == nil {
		return nil, errs.Errorf(errs.KindKnowledgeStore, "knowledge.Store", "store is read-only")
	}
	id, err := s.seq.Next()
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Store", err)
	}

	rec := &PatternRecord{
		ID:          id,
		PatternType: patternType,
		Payload:     payload,
		Frequency:   frequency,
		CreatedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Store", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(patternKey(id), data)
	})
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Store", err)
	}
	return rec, nil
}

// Retrieve returns records filtered by type, or all records when the type
// is empty, ordered by frequency descending then insertion order.
func (s *Store) Retrieve(patternType string) ([]PatternRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []PatternRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return s.iterPatterns(txn, func(rec PatternRecord) error {
			if patternType == "" || rec.PatternType == patternType {
				records = append(records, rec)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.Retrieve", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Frequency != records[j].Frequency {
			return records[i].Frequency > records[j].Frequency
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// UpdateFrequency sets the frequency on every record of the given type.
// Absence of a matching record is not an error.
func (s *Store) UpdateFrequency(patternType string, value int) error {
	if value < 1 {
		value = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		var updates []PatternRecord
		if err := s.iterPatterns(txn, func(rec PatternRecord) error {
			if rec.PatternType == patternType {
				rec.Frequency = value
				updates = append(updates, rec)
			}
			return nil
		}); err != nil {
			return err
		}
		for _, rec := range updates {
			data, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			if err := txn.Set(patternKey(rec.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.UpdateFrequency", err)
	}
	return nil
}

// Delete removes every record of the given type. Absence is a no-op.
func (s *Store) Delete(patternType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(txn *badger.Txn) error {
		var keys [][]byte
		if err := s.iterPatterns(txn, func(rec PatternRecord) error {
			if rec.PatternType == patternType {
				keys = append(keys, patternKey(rec.ID))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.Delete", err)
	}
	return nil
}

// Clear removes all pattern records.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DropPrefix([]byte(prefixPattern)); err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.Clear", err)
	}
	return nil
}

// ReplaceFindings replaces the stored findings for a file wholesale. A
// re-scan never accumulates findings.
func (s *Store) ReplaceFindings(file string, findings []detect.Finding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(findings)
	if err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.ReplaceFindings", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(findingsKey(file), data)
	})
	if err != nil {
		return errs.E(errs.KindKnowledgeStore, "knowledge.ReplaceFindings", err)
	}
	return nil
}

// FindingsByFile returns the stored findings for a file; nil when the file
// has none.
func (s *Store) FindingsByFile(file string) ([]detect.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var findings []detect.Finding
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(findingsKey(file))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &findings)
		})
	})
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.FindingsByFile", err)
	}
	return findings, nil
}

// AllFindings returns every stored finding keyed by file.
func (s *Store) AllFindings() (map[string][]detect.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]detect.Finding)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFindings)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			file := strings.TrimPrefix(string(item.Key()), prefixFindings)
			var findings []detect.Finding
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &findings)
			}); err != nil {
				return err
			}
			out[file] = findings
		}
		return nil
	})
	if err != nil {
		return nil, errs.E(errs.KindKnowledgeStore, "knowledge.AllFindings", err)
	}
	return out, nil
}

// BuildGraph replaces the in-memory relationship graph wholesale,
// mirroring the dependency graph builder's idempotence contract.
func (s *Store) BuildGraph(nodes []string, edges [][2]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.succ = make(map[string]map[string]bool, len(nodes))
	s.pred = make(map[string]map[string]bool, len(nodes))
	for _, n := range nodes {
		s.succ[n] = make(map[string]bool)
		s.pred[n] = make(map[string]bool)
	}
	for _, e := range edges {
		src, dst := e[0], e[1]
		if src == dst {
			continue
		}
		if s.succ[src] == nil {
			s.succ[src] = make(map[string]bool)
		}
		if s.pred[dst] == nil {
			s.pred[dst] = make(map[string]bool)
		}
		s.succ[src][dst] = true
		s.pred[dst][src] = true
	}
}

// Related returns the deduplicated union of a node's predecessors and
// successors, sorted for determinism.
func (s *Store) Related(node string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	for n := range s.succ[node] {
		seen[n] = true
	}
	for n := range s.pred[node] {
		seen[n] = true
	}

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// HasDependency reports whether a direct a→b edge exists. It never
// considers transitive reachability.
func (s *Store) HasDependency(a, b string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.succ[a][b]
}

// GraphSize returns the node and edge counts of the in-memory graph.
func (s *Store) GraphSize() (nodes, edges int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes = len(s.succ)
	for _, targets := range s.succ {
		edges += len(targets)
	}
	return nodes, edges
}

// iterPatterns walks every pattern record in key order.
func (s *Store) iterPatterns(txn *badger.Txn, fn func(PatternRecord) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixPattern)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var rec PatternRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		}); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func patternKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixPattern, id))
}

func findingsKey(file string) []byte {
	return []byte(prefixFindings + file)
}

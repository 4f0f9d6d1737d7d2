package store

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

// VectorStore is an in-memory HNSW index over reference embeddings,
// keyed by record number. Cosine metric over normalized vectors.
//
// Deletions are lazy: the node stays in the graph but is dropped from
// the key mappings, because coder/hnsw misbehaves when the last node is
// removed. Orphans are compacted away on the next Load.
type VectorStore struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	vectors map[int][]float32 // live set, normalized
	recKey  map[int]uint64
	keyRec  map[uint64]int
	nextKey uint64
	path    string
}

type vectorSnapshot struct {
	Vectors map[int][]float32
}

// NewVectorStore creates an empty vector store that persists to path.
// An empty path disables persistence (testing).
func NewVectorStore(path string) *VectorStore {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	return &VectorStore{
		graph:   graph,
		vectors: make(map[int][]float32),
		recKey:  make(map[int]uint64),
		keyRec:  make(map[uint64]int),
		path:    path,
	}
}

// Add inserts or replaces the vector for a record.
func (v *VectorStore) Add(recNumber int, vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("empty vector for #%d", recNumber)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	norm := make([]float32, len(vec))
	copy(norm, vec)
	normalizeVector(norm)

	// Replacing reuses a fresh internal key; the old node is orphaned.
	if oldKey, exists := v.recKey[recNumber]; exists {
		delete(v.keyRec, oldKey)
	}
	key := v.nextKey
	v.nextKey++

	v.graph.Add(hnsw.MakeNode(key, norm))
	v.vectors[recNumber] = norm
	v.recKey[recNumber] = key
	v.keyRec[key] = recNumber
	return nil
}

// Delete removes a record's vector (lazy).
func (v *VectorStore) Delete(recNumber int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, exists := v.recKey[recNumber]; exists {
		delete(v.keyRec, key)
		delete(v.recKey, recNumber)
		delete(v.vectors, recNumber)
	}
}

// Search returns up to limit nearest records by cosine similarity,
// best first, ties broken by record number.
func (v *VectorStore) Search(query []float32, limit int) []VectorHit {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if len(v.recKey) == 0 || limit <= 0 {
		return nil
	}

	norm := make([]float32, len(query))
	copy(norm, query)
	normalizeVector(norm)

	// Over-fetch to compensate for lazily deleted orphans.
	k := limit + (v.graph.Len() - len(v.recKey))
	nodes := v.graph.Search(norm, k)

	hits := make([]VectorHit, 0, limit)
	for _, node := range nodes {
		rec, live := v.keyRec[node.Key]
		if !live {
			continue
		}
		similarity := 1 - float64(hnsw.CosineDistance(norm, node.Value))
		hits = append(hits, VectorHit{RecNumber: rec, Similarity: similarity})
		if len(hits) == limit {
			break
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].RecNumber < hits[j].RecNumber
	})
	return hits
}

// Vector returns the stored (normalized) vector for a record, if any.
func (v *VectorStore) Vector(recNumber int) ([]float32, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	vec, ok := v.vectors[recNumber]
	return vec, ok
}

// Contains reports whether a record has a live vector.
func (v *VectorStore) Contains(recNumber int) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.recKey[recNumber]
	return ok
}

// Count returns the number of live vectors.
func (v *VectorStore) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.recKey)
}

// Available reports whether semantic search can serve queries.
// An empty index means "capability absent", not "no matches".
func (v *VectorStore) Available() bool {
	return v.Count() > 0
}

// Save writes the live vector set to disk (temp file + rename).
// Orphaned graph nodes are not persisted.
func (v *VectorStore) Save() error {
	if v.path == "" {
		return nil
	}

	v.mu.RLock()
	snap := vectorSnapshot{Vectors: make(map[int][]float32, len(v.vectors))}
	for rec, vec := range v.vectors {
		snap.Vectors[rec] = vec
	}
	v.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(v.path), 0o755); err != nil {
		return err
	}
	tmp := v.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(&snap); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, v.path)
}

// Load rebuilds the index from the persisted snapshot. Missing file is
// not an error: the index starts empty and semantic search reports
// unavailable until embeddings are generated.
func (v *VectorStore) Load() error {
	if v.path == "" {
		return nil
	}

	f, err := os.Open(v.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	var snap vectorSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return fmt.Errorf("corrupt vector index %s: %w", v.path, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	v.graph = graph
	v.vectors = make(map[int][]float32, len(snap.Vectors))
	v.recKey = make(map[int]uint64, len(snap.Vectors))
	v.keyRec = make(map[uint64]int, len(snap.Vectors))
	v.nextKey = 0

	// Deterministic insertion order.
	recs := make([]int, 0, len(snap.Vectors))
	for rec := range snap.Vectors {
		recs = append(recs, rec)
	}
	sort.Ints(recs)

	for _, rec := range recs {
		vec := snap.Vectors[rec]
		key := v.nextKey
		v.nextKey++
		v.graph.Add(hnsw.MakeNode(key, vec))
		v.vectors[rec] = vec
		v.recKey[rec] = key
		v.keyRec[key] = rec
	}
	return nil
}

func normalizeVector(vec []float32) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}

// Package membership maintains the live set of query and compactor workers
// and exposes the deterministic collection_id -> ranked_worker_list mapping
// spec.md §4.5 describes. Grounded on the teacher's
// pkg/memberlist_manager/{memberlist_manager,memberlist_store,node_watcher}.go
// and pkg/utils/rendezvous_hash.go, generalized from a single undifferentiated
// coordinator pool to two independently-watched pools (query, compactor) so a
// collection can be routed to its preferred query executor and its preferred
// compactor independently.
package membership

import (
	"errors"
	"sort"

	"github.com/spaolacci/murmur3"
)

// Hasher scores a (worker, key) pair; higher scores rank higher.
type Hasher func(worker, key string) uint64

// Murmur3Hasher is the default Hasher, identical in shape to the teacher's
// rendezvous_hash.go (two independent murmur3 sums merged with a
// finalizer-style mix), so the ranking is stable across process restarts.
func Murmur3Hasher(worker, key string) uint64 {
	h := murmur3.New64()
	h.Write([]byte(worker))
	workerHash := h.Sum64()
	h.Reset()
	h.Write([]byte(key))
	keyHash := h.Sum64()
	return mergeHashes(workerHash, keyHash)
}

func mergeHashes(a, b uint64) uint64 {
	acc := a ^ b
	acc ^= acc >> 33
	acc *= 0xff51afd7ed558ccd
	acc ^= acc >> 33
	acc *= 0xc4ceb9fe1a85ec53
	acc ^= acc >> 33
	return acc
}

type scoredWorker struct {
	id    string
	score uint64
}

// Rank orders workers by descending rendezvous score for key. The result is
// the ranked_worker_list spec.md §4.5 describes: index 0 is primary, the
// rest are failover candidates in preference order.
func Rank(key string, workers []string, hasher Hasher) ([]string, error) {
	if len(workers) == 0 {
		return nil, errors.New("membership: cannot rank against an empty worker set")
	}
	if key == "" {
		return nil, errors.New("membership: cannot rank an empty key")
	}
	scored := make([]scoredWorker, len(workers))
	for i, w := range workers {
		scored[i] = scoredWorker{id: w, score: hasher(w, key)}
	}
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id // stable tiebreak
	})
	ranked := make([]string, len(scored))
	for i, s := range scored {
		ranked[i] = s.id
	}
	return ranked, nil
}

// Primary is a convenience wrapper returning only the top-ranked worker.
func Primary(key string, workers []string, hasher Hasher) (string, error) {
	ranked, err := Rank(key, workers, hasher)
	if err != nil {
		return "", err
	}
	return ranked[0], nil
}

package telemetry

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
	"sync"
)

// HallEntry records one generation champion and its serialised controller.
type HallEntry struct {
	Session    string  `json:"session"`
	Epoch      int     `json:"epoch"`
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
	Steps      int     `json:"steps"`
	Weights    any     `json:"weights,omitempty"`
}

// HallOfFame keeps the fittest controllers per session, sorted descending.
type HallOfFame struct {
	mu      sync.Mutex
	halls   map[string][]HallEntry
	maxSize int
	rng     *rand.Rand
}

// NewHallOfFame creates a hall of fame with the given capacity per session.
func NewHallOfFame(maxSize int, rng *rand.Rand) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		halls:   make(map[string][]HallEntry),
		maxSize: maxSize,
		rng:     rng,
	}
}

// Consider offers an entry to its session's hall.
// Returns true if the entry was added.
func (hof *HallOfFame) Consider(entry HallEntry) bool {
	hof.mu.Lock()
	defer hof.mu.Unlock()

	hall := hof.halls[entry.Session]
	var added bool
	hall, added = hof.insertEntry(hall, entry)
	hof.halls[entry.Session] = hall
	return added
}

// insertEntry adds an entry to the hall, maintaining sorted order by fitness.
// If the hall is full, the lowest-fitness entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) ([]HallEntry, bool) {
	// Find insertion point (sorted descending by fitness)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Fitness < entry.Fitness
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall, false
	}

	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}
	return hall, true
}

// Sample selects an entry from a session's hall using tournament selection.
// Returns false if the hall is empty.
func (hof *HallOfFame) Sample(session string) (HallEntry, bool) {
	hof.mu.Lock()
	defer hof.mu.Unlock()

	hall := hof.halls[session]
	if len(hall) == 0 {
		return HallEntry{}, false
	}

	// Tournament selection with k=3
	const tournamentSize = 3
	best := len(hall)
	for i := 0; i < tournamentSize; i++ {
		if idx := hof.rng.Intn(len(hall)); idx < best {
			best = idx
		}
	}
	return hall[best], true
}

// Size returns the number of entries for a session.
func (hof *HallOfFame) Size(session string) int {
	hof.mu.Lock()
	defer hof.mu.Unlock()
	return len(hof.halls[session])
}

// Top returns the best entry for a session.
func (hof *HallOfFame) Top(session string) (HallEntry, bool) {
	hof.mu.Lock()
	defer hof.mu.Unlock()
	hall := hof.halls[session]
	if len(hall) == 0 {
		return HallEntry{}, false
	}
	return hall[0], true
}

// MarshalJSON encodes every hall keyed by session.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	hof.mu.Lock()
	defer hof.mu.Unlock()
	data, err := json.MarshalIndent(hof.halls, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal hall of fame: %w", err)
	}
	return data, nil
}

package game

import "math/rand"

// Skip list with span counts for O(log n) rank queries, the structure
// Redis ZSET uses for leaderboards. No locking: the scoreboard is
// owned by the engine goroutine and nothing else touches it.

const (
	skipMaxLevel    = 32   // supports 2^32 entries
	skipProbability = 0.25 // geometric level distribution
)

// RankedEntry is one scored standing.
type RankedEntry struct {
	ID    string
	Score float64
}

type skipNode struct {
	entry RankedEntry
	next  []*skipNode
	span  []int // distance to next node at each level
}

func newSkipNode(level int, id string, score float64) *skipNode {
	return &skipNode{
		entry: RankedEntry{ID: id, Score: score},
		next:  make([]*skipNode, level),
		span:  make([]int, level),
	}
}

// skipList orders entries by score descending, ID ascending on ties so
// equal scores keep a stable order across updates. Callers must pass
// the stored score to remove and rank; the Scoreboard wrapper tracks
// it per ID.
type skipList struct {
	head   *skipNode
	level  int
	length int
	rng    *rand.Rand
}

func newSkipList(seed int64) *skipList {
	return &skipList{
		head:  newSkipNode(skipMaxLevel, "", 0),
		level: 1,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (sl *skipList) randomLevel() int {
	level := 1
	for level < skipMaxLevel && sl.rng.Float64() < skipProbability {
		level++
	}
	return level
}

// precedes reports whether entry a sorts strictly before entry b.
func precedes(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

// insert adds an entry. The caller guarantees the ID is not present
// (update is remove + insert).
func (sl *skipList) insert(id string, score float64) {
	update := make([]*skipNode, skipMaxLevel)
	rank := make([]int, skipMaxLevel)

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i == sl.level-1 {
			rank[i] = 0
		} else {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && precedes(x.next[i].entry.Score, x.next[i].entry.ID, score, id) {
			rank[i] += x.span[i]
			x = x.next[i]
		}
		update[i] = x
	}

	level := sl.randomLevel()
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			rank[i] = 0
			update[i] = sl.head
			update[i].span[i] = sl.length
		}
		sl.level = level
	}

	node := newSkipNode(level, id, score)
	for i := 0; i < level; i++ {
		node.next[i] = update[i].next[i]
		update[i].next[i] = node
		node.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = (rank[0] - rank[i]) + 1
	}
	for i := level; i < sl.level; i++ {
		update[i].span[i]++
	}
	sl.length++
}

// remove deletes the entry with the given ID and stored score.
func (sl *skipList) remove(id string, score float64) bool {
	update := make([]*skipNode, skipMaxLevel)

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && precedes(x.next[i].entry.Score, x.next[i].entry.ID, score, id) {
			x = x.next[i]
		}
		update[i] = x
	}

	x = x.next[0]
	if x == nil || x.entry.ID != id || x.entry.Score != score {
		return false
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == x {
			update[i].span[i] += x.span[i] - 1
			update[i].next[i] = x.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.head.span[sl.level-1] = 0
		sl.level--
	}
	sl.length--
	return true
}

// rank returns the 1-indexed position of the entry (1 = best), or 0
// if absent.
func (sl *skipList) rank(id string, score float64) int {
	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && precedes(x.next[i].entry.Score, x.next[i].entry.ID, score, id) {
			rank += x.span[i]
			x = x.next[i]
		}
	}
	x = x.next[0]
	if x != nil && x.entry.ID == id && x.entry.Score == score {
		return rank + 1
	}
	return 0
}

// top returns the first n entries in rank order.
func (sl *skipList) top(n int) []RankedEntry {
	if n > sl.length {
		n = sl.length
	}
	if n <= 0 {
		return nil
	}
	out := make([]RankedEntry, 0, n)
	for x := sl.head.next[0]; x != nil && len(out) < n; x = x.next[0] {
		out = append(out, x.entry)
	}
	return out
}

// forEach visits entries in rank order until fn returns false.
func (sl *skipList) forEach(fn func(rank int, e RankedEntry) bool) {
	rank := 0
	for x := sl.head.next[0]; x != nil; x = x.next[0] {
		rank++
		if !fn(rank, x.entry) {
			return
		}
	}
}

// size returns the entry count.
func (sl *skipList) size() int { return sl.length }

// Package ranking implements an ordered score index for the leaderboard.
//
// The index is a skip list augmented with span counts so rank lookups are
// O(log n), the same layout Redis uses for sorted sets (Pugh, 1990).
package ranking

import (
	"math/rand"
	"sync"
)

const (
	maxLevel         = 24
	levelProbability = 0.25
)

// Entry is one ranked player
type Entry struct {
	ID    uint32 `json:"id"`
	Score int32  `json:"score"`
	Rank  int    `json:"rank"`
}

type node struct {
	id    uint32
	score int32
	next  []*node
	span  []int
}

// SkipList orders entries by score descending, ties broken by ascending id.
type SkipList struct {
	mu     sync.RWMutex
	head   *node
	level  int
	length int
	scores map[uint32]int32
	rng    *rand.Rand
}

// NewSkipList creates an empty index
func NewSkipList(seed int64) *SkipList {
	return &SkipList{
		head: &node{
			next: make([]*node, maxLevel),
			span: make([]int, maxLevel),
		},
		level:  1,
		scores: make(map[uint32]int32),
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// before reports whether (score, id) ranks ahead of n
func before(n *node, score int32, id uint32) bool {
	if n.score != score {
		return n.score > score
	}
	return n.id < id
}

func (sl *SkipList) randomLevel() int {
	level := 1
	for level < maxLevel && sl.rng.Float64() < levelProbability {
		level++
	}
	return level
}

// Set inserts id or moves it to its new score.
func (sl *SkipList) Set(id uint32, score int32) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	if old, ok := sl.scores[id]; ok {
		if old == score {
			return
		}
		sl.delete(id, old)
	}
	sl.insert(id, score)
	sl.scores[id] = score
}

// Remove deletes id. Returns false if it was not indexed.
func (sl *SkipList) Remove(id uint32) bool {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	score, ok := sl.scores[id]
	if !ok {
		return false
	}
	sl.delete(id, score)
	delete(sl.scores, id)
	return true
}

func (sl *SkipList) insert(id uint32, score int32) {
	var update [maxLevel]*node
	var rank [maxLevel]int

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.next[i] != nil && before(x.next[i], score, id) {
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

	n := &node{
		id:    id,
		score: score,
		next:  make([]*node, level),
		span:  make([]int, level),
	}
	for i := 0; i < level; i++ {
		n.next[i] = update[i].next[i]
		update[i].next[i] = n
		n.span[i] = update[i].span[i] - (rank[0] - rank[i])
		update[i].span[i] = rank[0] - rank[i] + 1
	}
	for i := level; i < sl.level; i++ {
		update[i].span[i]++
	}
	sl.length++
}

func (sl *SkipList) delete(id uint32, score int32) {
	var update [maxLevel]*node

	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && before(x.next[i], score, id) {
			x = x.next[i]
		}
		update[i] = x
	}

	target := x.next[0]
	if target == nil || target.id != id {
		return
	}

	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == target {
			update[i].span[i] += target.span[i] - 1
			update[i].next[i] = target.next[i]
		} else {
			update[i].span[i]--
		}
	}
	for sl.level > 1 && sl.head.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
}

// Rank returns the 1-based rank of id, or 0 if absent.
func (sl *SkipList) Rank(id uint32) int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	score, ok := sl.scores[id]
	if !ok {
		return 0
	}

	rank := 0
	x := sl.head
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && (before(x.next[i], score, id) || x.next[i].id == id) {
			rank += x.span[i]
			x = x.next[i]
		}
		if x != sl.head && x.id == id {
			return rank
		}
	}
	return 0
}

// Top returns up to n entries in rank order.
func (sl *SkipList) Top(n int) []Entry {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if n > sl.length {
		n = sl.length
	}
	out := make([]Entry, 0, n)
	for x := sl.head.next[0]; x != nil && len(out) < n; x = x.next[0] {
		out = append(out, Entry{ID: x.id, Score: x.score, Rank: len(out) + 1})
	}
	return out
}

// Len returns the number of indexed players
func (sl *SkipList) Len() int {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.length
}

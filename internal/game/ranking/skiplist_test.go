package ranking

import (
	"math/rand"
	"sort"
	"testing"
)

// TestSkipListOrder verifies score-descending order with id tiebreak
func TestSkipListOrder(t *testing.T) {
	sl := NewSkipList(1)
	sl.Set(1, 5)
	sl.Set(2, 10)
	sl.Set(3, 5)
	sl.Set(4, -2)

	top := sl.Top(10)
	want := []uint32{2, 1, 3, 4}
	if len(top) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(top))
	}
	for i, id := range want {
		if top[i].ID != id {
			t.Errorf("Rank %d: expected id %d, got %d", i+1, id, top[i].ID)
		}
		if top[i].Rank != i+1 {
			t.Errorf("Expected rank %d, got %d", i+1, top[i].Rank)
		}
	}
}

// TestSkipListUpdateAndRemove verifies re-scoring and removal
func TestSkipListUpdateAndRemove(t *testing.T) {
	sl := NewSkipList(2)
	sl.Set(1, 1)
	sl.Set(2, 2)

	sl.Set(1, 3)
	if r := sl.Rank(1); r != 1 {
		t.Errorf("Expected id 1 at rank 1 after update, got %d", r)
	}
	if sl.Len() != 2 {
		t.Errorf("Expected 2 entries after update, got %d", sl.Len())
	}

	if !sl.Remove(1) {
		t.Error("Remove should report true for a present id")
	}
	if sl.Remove(1) {
		t.Error("Remove should report false for an absent id")
	}
	if r := sl.Rank(1); r != 0 {
		t.Errorf("Expected rank 0 for removed id, got %d", r)
	}
	if r := sl.Rank(2); r != 1 {
		t.Errorf("Expected id 2 at rank 1, got %d", r)
	}
}

// TestSkipListRandomized compares ranks against a sorted reference
func TestSkipListRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	sl := NewSkipList(3)
	ref := make(map[uint32]int32)

	for i := 0; i < 2000; i++ {
		id := uint32(rng.Intn(100) + 1)
		if rng.Intn(5) == 0 {
			sl.Remove(id)
			delete(ref, id)
			continue
		}
		score := int32(rng.Intn(40) - 20)
		sl.Set(id, score)
		ref[id] = score
	}

	ids := make([]uint32, 0, len(ref))
	for id := range ref {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ref[ids[i]] != ref[ids[j]] {
			return ref[ids[i]] > ref[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if sl.Len() != len(ids) {
		t.Fatalf("Expected %d entries, got %d", len(ids), sl.Len())
	}
	for i, id := range ids {
		if r := sl.Rank(id); r != i+1 {
			t.Errorf("Id %d: expected rank %d, got %d", id, i+1, r)
		}
	}
	top := sl.Top(len(ids))
	for i, e := range top {
		if e.ID != ids[i] || e.Score != ref[ids[i]] {
			t.Errorf("Top[%d]: expected %d/%d, got %d/%d", i, ids[i], ref[ids[i]], e.ID, e.Score)
		}
	}
}

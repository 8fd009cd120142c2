package game

import (
	"time"

	"flag-arena/internal/game/ranking"
)

// Leaderboard ranks connected players by score
type Leaderboard struct {
	index *ranking.SkipList
}

// NewLeaderboard creates an empty leaderboard
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{index: ranking.NewSkipList(time.Now().UnixNano())}
}

// Sync records the current score of every player in players
func (lb *Leaderboard) Sync(players []Player) {
	for _, p := range players {
		lb.index.Set(p.ID, p.Score)
	}
}

// Remove drops a departed player
func (lb *Leaderboard) Remove(id uint32) {
	lb.index.Remove(id)
}

// Top returns the best n players
func (lb *Leaderboard) Top(n int) []ranking.Entry {
	return lb.index.Top(n)
}

// Rank returns the 1-based rank of id, or 0 if unknown
func (lb *Leaderboard) Rank(id uint32) int {
	return lb.index.Rank(id)
}

// Len returns the number of ranked players
func (lb *Leaderboard) Len() int {
	return lb.index.Len()
}

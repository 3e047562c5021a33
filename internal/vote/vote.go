// Package vote is the Vote Ledger shared by posts and comments: at most one
// vote per user per target, with toggle semantics.
package vote

import (
	"sort"
	"strings"

	"campus-hub/internal/apperr"
)

type Kind string

const (
	KindPost    Kind = "post"
	KindComment Kind = "comment"
)

func (k Kind) Valid() bool {
	return k == KindPost || k == KindComment
}

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts up/down and the upvote/downvote spelling used by
// the REST routes.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up", "upvote":
		return Up, nil
	case "down", "downvote":
		return Down, nil
	}
	return "", apperr.Validation("vote", "direction", "must be up or down")
}

// State is one user's standing vote on a target.
type State int

const (
	Downvoted State = -1
	None      State = 0
	Upvoted   State = 1
)

type Target struct {
	Kind Kind
	ID   int64
}

type Tally struct {
	TargetID  int64   `json:"target_id"`
	Upvotes   []int64 `json:"upvotes"`
	Downvotes []int64 `json:"downvotes"`
	Score     int     `json:"score"`
}

// StateOf reports userID's current vote in t.
func (t Tally) StateOf(userID int64) State {
	if contains(t.Upvotes, userID) {
		return Upvoted
	}
	if contains(t.Downvotes, userID) {
		return Downvoted
	}
	return None
}

// Apply returns the tally after userID votes dir, and userID's new state.
// Voting the same direction twice withdraws the vote; voting the other
// direction moves it. t is not modified.
func Apply(t Tally, userID int64, dir Direction) (Tally, State) {
	up := without(t.Upvotes, userID)
	down := without(t.Downvotes, userID)

	state := None
	switch dir {
	case Up:
		if !contains(t.Upvotes, userID) {
			up = append(up, userID)
			state = Upvoted
		}
	case Down:
		if !contains(t.Downvotes, userID) {
			down = append(down, userID)
			state = Downvoted
		}
	}

	return Tally{
		TargetID:  t.TargetID,
		Upvotes:   up,
		Downvotes: down,
		Score:     len(up) - len(down),
	}, state
}

// FromStates builds a tally from per-user states. Voter lists are sorted.
func FromStates(targetID int64, states map[int64]State) Tally {
	t := Tally{TargetID: targetID, Upvotes: []int64{}, Downvotes: []int64{}}
	for userID, st := range states {
		switch st {
		case Upvoted:
			t.Upvotes = append(t.Upvotes, userID)
		case Downvoted:
			t.Downvotes = append(t.Downvotes, userID)
		}
	}
	sort.Slice(t.Upvotes, func(i, j int) bool { return t.Upvotes[i] < t.Upvotes[j] })
	sort.Slice(t.Downvotes, func(i, j int) bool { return t.Downvotes[i] < t.Downvotes[j] })
	t.Score = len(t.Upvotes) - len(t.Downvotes)
	return t
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

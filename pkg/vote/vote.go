package vote

// Vote is one row of the ledger: at most one per (user, post) pair,
// value is always exactly +1 or -1.
type Vote struct {
	UserId int64 `json:"userId"`
	PostId int64 `json:"postId"`
	Value  int   `json:"value"`
}

// Key identifies a ledger row.
type Key struct {
	UserId int64
	PostId int64
}

// Normalize collapses any requested value to a unit vote:
// non-negative requests count as an upvote, negative as a downvote.
func Normalize(value int) int {
	if value < 0 {
		return -1
	}
	return 1
}

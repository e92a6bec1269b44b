package vote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v4/stdlib"
)

type VoteRepo struct {
	db *sql.DB
}

func NewVoteRepo(db *sql.DB) *VoteRepo {
	return &VoteRepo{
		db: db,
	}
}

// Cast records the user's vote on a post and keeps posts.score equal to
// the sum of the post's vote values. The existing-vote check and both
// writes run in one transaction; the FOR UPDATE read serializes
// concurrent casts on the same (user, post) pair so no score delta is
// lost.
//
// First vote inserts the row and moves the score by the vote value.
// Flipping an existing vote updates the row in place and moves the score
// by twice the new value (the old unit is removed and the new one
// applied in a single delta). Repeating the same vote is a no-op.
func (r *VoteRepo) Cast(ctx context.Context, userId, postId int64, value int) error {
	checked := Normalize(value)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("vote/repo: failed starting transaction: %w", err)
	}
	defer tx.Rollback()

	var existing int
	hasVote := true
	row := tx.QueryRowContext(ctx,
		"SELECT value FROM votes WHERE user_id=$1 AND post_id=$2 FOR UPDATE", userId, postId)
	if err := row.Scan(&existing); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("vote/repo: failed reading existing vote: %w", err)
		}
		hasVote = false
	}

	switch {
	case !hasVote:
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO votes(user_id, post_id, value) VALUES($1, $2, $3)",
			userId, postId, checked); err != nil {
			return fmt.Errorf("vote/repo: failed inserting vote: %w", err)
		}
		if err := bumpScore(ctx, tx, postId, checked); err != nil {
			return err
		}
	case existing != checked:
		if _, err := tx.ExecContext(ctx,
			"UPDATE votes SET value=$1 WHERE user_id=$2 AND post_id=$3",
			checked, userId, postId); err != nil {
			return fmt.Errorf("vote/repo: failed updating vote: %w", err)
		}
		if err := bumpScore(ctx, tx, postId, 2*checked); err != nil {
			return err
		}
	default:
		// Same vote again: the ledger already says exactly this.
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("vote/repo: failed committing vote: %w", err)
	}
	return nil
}

func bumpScore(ctx context.Context, tx *sql.Tx, postId int64, delta int) error {
	result, err := tx.ExecContext(ctx,
		"UPDATE posts SET score = score + $1 WHERE id=$2", delta, postId)
	if err != nil {
		return fmt.Errorf("vote/repo: failed updating post score: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("vote/repo: failed updating post score: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("vote/repo: no post with id %d", postId)
	}
	return nil
}

// GetByKeys is the loader's batch fetch for (user, post) pairs. Row
// order is up to the database; callers reorder by key themselves.
func (r *VoteRepo) GetByKeys(ctx context.Context, keys []Key) ([]*Vote, error) {
	if len(keys) == 0 {
		return []*Vote{}, nil
	}

	pairs := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)*2)
	for i, key := range keys {
		pairs = append(pairs, "($"+strconv.Itoa(i*2+1)+", $"+strconv.Itoa(i*2+2)+")")
		args = append(args, key.UserId, key.PostId)
	}

	query := "SELECT user_id, post_id, value FROM votes WHERE (user_id, post_id) IN (" +
		strings.Join(pairs, ", ") + ")"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vote/repo: failed querying votes batch: %w", err)
	}
	defer rows.Close()

	votes := []*Vote{}
	for rows.Next() {
		v := new(Vote)
		if err := rows.Scan(&v.UserId, &v.PostId, &v.Value); err != nil {
			return nil, fmt.Errorf("vote/repo: could not scan row: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vote/repo: rows iteration failed: %w", err)
	}
	return votes, nil
}

// SumForPost recomputes a post's score straight from the ledger.
// Audit helper; the denormalized posts.score must always match it.
func (r *VoteRepo) SumForPost(ctx context.Context, postId int64) (int, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(value), 0) FROM votes WHERE post_id=$1", postId)
	var sum int
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("vote/repo: failed summing votes: %w", err)
	}
	return sum, nil
}

package post

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib"
)

const postColumns = "id, title, text, score, author_id, created_at, updated_at"

type PostRepo struct {
	db *sql.DB
}

func NewPostRepo(db *sql.DB) *PostRepo {
	return &PostRepo{
		db: db,
	}
}

func (r *PostRepo) Add(ctx context.Context, p *Post) error {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO posts(title, text, author_id) VALUES($1, $2, $3) RETURNING id, score, created_at, updated_at",
		p.Title, p.Text, p.AuthorId)
	if err := row.Scan(&p.Id, &p.Score, &p.Created, &p.Updated); err != nil {
		return fmt.Errorf("post/repo: post wasn't added: %w", err)
	}
	return nil
}

func (r *PostRepo) GetById(ctx context.Context, id int64) (*Post, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE id=$1", id)
	p := new(Post)
	err := row.Scan(&p.Id, &p.Title, &p.Text, &p.Score, &p.AuthorId, &p.Created, &p.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("post/repo: row scan failed: %w", err)
	}
	return p, nil
}

// List returns one feed page, newest first. The limit is clamped to
// LimitCap and one extra row is requested: getting it back means more
// posts exist beyond this page. A cursor restricts the page to posts
// strictly older than it.
func (r *PostRepo) List(ctx context.Context, limit int, cursor *time.Time) ([]*Post, bool, error) {
	if limit > LimitCap {
		limit = LimitCap
	}
	if limit < 1 {
		limit = 1
	}
	limitPlusOne := limit + 1

	var (
		rows *sql.Rows
		err  error
	)
	if cursor != nil {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+postColumns+" FROM posts WHERE created_at < $2 ORDER BY created_at DESC LIMIT $1",
			limitPlusOne, *cursor)
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+postColumns+" FROM posts ORDER BY created_at DESC LIMIT $1",
			limitPlusOne)
	}
	if err != nil {
		return nil, false, fmt.Errorf("post/repo: failed querying posts: %w", err)
	}
	defer rows.Close()

	posts := []*Post{}
	for rows.Next() {
		p := new(Post)
		if err := rows.Scan(&p.Id, &p.Title, &p.Text, &p.Score, &p.AuthorId, &p.Created, &p.Updated); err != nil {
			return nil, false, fmt.Errorf("post/repo: could not scan row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("post/repo: rows iteration failed: %w", err)
	}

	hasMore := len(posts) == limitPlusOne
	if hasMore {
		posts = posts[:limit]
	}
	return posts, hasMore, nil
}

// Update changes title and text of the author's own post. A nil result
// without an error means "no such post of yours" — whether the id is
// missing or belongs to somebody else is deliberately not revealed.
func (r *PostRepo) Update(ctx context.Context, id, authorId int64, title, text string) (*Post, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE posts SET title=$1, text=$2, updated_at=now() WHERE id=$3 AND author_id=$4 RETURNING "+postColumns,
		title, text, id, authorId)
	p := new(Post)
	err := row.Scan(&p.Id, &p.Title, &p.Text, &p.Score, &p.AuthorId, &p.Created, &p.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("post/repo: failed updating post: %w", err)
	}
	return p, nil
}

// Delete removes the author's own post; votes go with it via the
// ON DELETE CASCADE on votes.post_id.
func (r *PostRepo) Delete(ctx context.Context, id, authorId int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM posts WHERE id=$1 AND author_id=$2", id, authorId)
	if err != nil {
		return false, fmt.Errorf("post/repo: failed deleting post: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("post/repo: failed deleting post: %w", err)
	}
	return affected > 0, nil
}

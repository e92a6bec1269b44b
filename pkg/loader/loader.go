// Package loader batches point lookups issued while one request is
// resolved. Each loader is built per inbound request, carries its own
// pending-key buffer and result cache, and is thrown away with the
// request, so authorization-sensitive rows never leak between viewers.
//
// The feed resolver primes a loader with LoadMany once per page — one
// multi-key query instead of one query per post. Field resolvers then
// read through Load, which only touches the database on a cache miss.
// Request handling is sequential, so the loaders need no locking.
package loader

import (
	"context"

	"forum/pkg/user"
	"forum/pkg/vote"
)

type UserFetcher interface {
	GetByIds(context.Context, []int64) ([]*user.User, error)
}

// UserLoader resolves users by id.
type UserLoader struct {
	fetch UserFetcher
	cache map[int64]*user.User
}

func NewUserLoader(fetch UserFetcher) *UserLoader {
	return &UserLoader{
		fetch: fetch,
		cache: map[int64]*user.User{},
	}
}

// LoadMany resolves every id in one batch fetch. The result holds the
// entity for ids[i] at position i — or nil there when no row exists —
// no matter what order the database returned rows in.
func (l *UserLoader) LoadMany(ctx context.Context, ids []int64) ([]*user.User, error) {
	pending := make([]int64, 0, len(ids))
	seen := map[int64]bool{}
	for _, id := range ids {
		if _, cached := l.cache[id]; cached || seen[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}

	if len(pending) > 0 {
		users, err := l.fetch.GetByIds(ctx, pending)
		if err != nil {
			return nil, err
		}
		byId := map[int64]*user.User{}
		for _, u := range users {
			byId[u.Id] = u
		}
		// Missing ids are cached as nil so they aren't refetched.
		for _, id := range pending {
			l.cache[id] = byId[id]
		}
	}

	result := make([]*user.User, len(ids))
	for i, id := range ids {
		result[i] = l.cache[id]
	}
	return result, nil
}

// Load resolves a single id, from cache when the page was primed.
func (l *UserLoader) Load(ctx context.Context, id int64) (*user.User, error) {
	if u, cached := l.cache[id]; cached {
		return u, nil
	}
	result, err := l.LoadMany(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}

type VoteFetcher interface {
	GetByKeys(context.Context, []vote.Key) ([]*vote.Vote, error)
}

// VoteLoader resolves ledger rows by (user, post) pair. A nil result
// means the user never voted on the post.
type VoteLoader struct {
	fetch VoteFetcher
	cache map[vote.Key]*vote.Vote
}

func NewVoteLoader(fetch VoteFetcher) *VoteLoader {
	return &VoteLoader{
		fetch: fetch,
		cache: map[vote.Key]*vote.Vote{},
	}
}

func (l *VoteLoader) LoadMany(ctx context.Context, keys []vote.Key) ([]*vote.Vote, error) {
	pending := make([]vote.Key, 0, len(keys))
	seen := map[vote.Key]bool{}
	for _, key := range keys {
		if _, cached := l.cache[key]; cached || seen[key] {
			continue
		}
		seen[key] = true
		pending = append(pending, key)
	}

	if len(pending) > 0 {
		votes, err := l.fetch.GetByKeys(ctx, pending)
		if err != nil {
			return nil, err
		}
		byKey := map[vote.Key]*vote.Vote{}
		for _, v := range votes {
			byKey[vote.Key{UserId: v.UserId, PostId: v.PostId}] = v
		}
		for _, key := range pending {
			l.cache[key] = byKey[key]
		}
	}

	result := make([]*vote.Vote, len(keys))
	for i, key := range keys {
		result[i] = l.cache[key]
	}
	return result, nil
}

func (l *VoteLoader) Load(ctx context.Context, key vote.Key) (*vote.Vote, error) {
	if v, cached := l.cache[key]; cached {
		return v, nil
	}
	result, err := l.LoadMany(ctx, []vote.Key{key})
	if err != nil {
		return nil, err
	}
	return result[0], nil
}

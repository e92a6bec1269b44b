package main

import (
	"context"
	"log"
	"math/rand"
	"strings"

	"github.com/jaswdr/faker"

	. "forum/pkg/common"
	"forum/pkg/post"
	"forum/pkg/user"
	"forum/pkg/vote"
)

var f = faker.New()

// seed generates fake content to have a populated feed during
// development. Votes go through the ledger so the denormalized scores
// stay truthful.
func seed(userRepo *user.UserRepo, postRepo *post.PostRepo, voteRepo *vote.VoteRepo) {
	ctx := context.Background()

	authors, err := userRepo.GetAll(ctx)
	if err != nil {
		log.Fatalln("seed: can't get all authors:", err)
	}
	if len(authors) == 0 {
		authors = createAuthors(ctx, userRepo)
	}

	posts := make([]*post.Post, 0, 20)
	for i := 0; i < 20; i++ {
		p := genPost(authors)
		if err := postRepo.Add(ctx, p); err != nil {
			log.Fatalln("seed: can't add post:", err)
		}
		posts = append(posts, p)
	}

	for _, p := range posts {
		for _, voter := range authors {
			if rand.Intn(3) == 0 {
				continue
			}
			value := 1
			if rand.Intn(4) == 0 {
				value = -1
			}
			if err := voteRepo.Cast(ctx, voter.Id, p.Id, value); err != nil {
				log.Fatalln("seed: can't cast vote:", err)
			}
		}
	}

	log.Printf("seed: created %d posts by %d authors", len(posts), len(authors))
}

func createAuthors(ctx context.Context, userRepo *user.UserRepo) []*user.User {
	onePassForAll := HashPass("sdfsdfsdf", RandStringRunes(SaltLen))

	// User for experiments (not random)
	authors := []*user.User{{
		Username: "pike",
		Email:    "pike@example.com",
		Password: onePassForAll,
	}}
	for i := 1; i <= 5; i++ {
		username := strings.ToLower(f.Person().FirstName()) + RandStringRunes(3)
		authors = append(authors, &user.User{
			Username: username,
			Email:    username + "@example.com",
			Password: onePassForAll,
		})
	}

	for _, u := range authors {
		if err := userRepo.Add(ctx, u); err != nil {
			log.Fatalln("seed: can't add user:", err)
		}
	}
	return authors
}

func genTitle() string {
	return strings.Join(f.Lorem().Words(rand.Intn(5)+3), " ")
}

func genText() string {
	return f.Lorem().Paragraph(rand.Intn(3) + 2)
}

func genPost(users []*user.User) *post.Post {
	author := users[rand.Intn(len(users))]
	return &post.Post{
		Title:    genTitle(),
		Text:     genText(),
		AuthorId: author.Id,
	}
}

package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/graphql-go/graphql"

	"forum/pkg/common"
	"forum/pkg/logger"
	"forum/pkg/post"
	"forum/pkg/sessions"
	"forum/pkg/user"
	"forum/pkg/vote"
)

// ErrNotAuthenticated guards every mutating operation: it is returned
// before any storage access when the request carries no valid session.
var ErrNotAuthenticated = errors.New("not authenticated")

type (
	IUserRepo interface {
		Add(context.Context, *user.User) error
		GetById(context.Context, int64) (*user.User, error)
		GetByUsername(context.Context, string) (*user.User, error)
		GetByEmail(context.Context, string) (*user.User, error)
		UpdatePassword(context.Context, int64, []byte) error
	}

	IPostRepo interface {
		Add(context.Context, *post.Post) error
		GetById(context.Context, int64) (*post.Post, error)
		List(context.Context, int, *time.Time) ([]*post.Post, bool, error)
		Update(ctx context.Context, id, authorId int64, title, text string) (*post.Post, error)
		Delete(ctx context.Context, id, authorId int64) (bool, error)
	}

	IVoteRepo interface {
		Cast(ctx context.Context, userId, postId int64, value int) error
	}

	ISessionManager interface {
		CreateToken(int64) (string, error)
		Destroy(string) error
		CreateResetToken(int64) (string, error)
		UserIdFromResetToken(string) (int64, bool, error)
		DeleteResetToken(string) error
	}

	IMailer interface {
		Send(to, subject, htmlBody string)
	}

	Resolver struct {
		Users        IUserRepo
		Posts        IPostRepo
		Votes        IVoteRepo
		Sessions     ISessionManager
		Mailer       IMailer
		ResetURLBase string
	}
)

// PaginatedPosts is one feed page.
type PaginatedPosts struct {
	Posts   []*post.Post `json:"posts"`
	HasMore bool         `json:"hasMore"`
}

// UserResponse carries either field-scoped errors or the user plus a
// fresh session token. Validation failures are data, not GraphQL errors.
type UserResponse struct {
	Errors []user.FieldError `json:"errors"`
	User   *user.User        `json:"user"`
	Token  string            `json:"token"`
}

func fieldErrs(field, message string) *UserResponse {
	return &UserResponse{Errors: []user.FieldError{{Field: field, Message: message}}}
}

// --- Queries ---

func (r *Resolver) PostsQuery(p graphql.ResolveParams) (interface{}, error) {
	limit, _ := p.Args["limit"].(int)

	var cursor *time.Time
	if raw, ok := p.Args["cursor"].(string); ok && raw != "" {
		millis, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("graph: bad cursor %q", raw)
		}
		t := time.UnixMilli(millis)
		cursor = &t
	}

	posts, hasMore, err := r.Posts.List(p.Context, limit, cursor)
	if err != nil {
		logger.Log(p.Context).Errorf("can't load posts feed: %v", err)
		return nil, err
	}

	r.primeLoaders(p.Context, posts)

	return &PaginatedPosts{Posts: posts, HasMore: hasMore}, nil
}

// primeLoaders batches the page's author and viewer-vote lookups into
// one fetch each, so the per-post field resolvers hit the cache instead
// of issuing a query per post.
func (r *Resolver) primeLoaders(ctx context.Context, posts []*post.Post) {
	loaders := Loaders(ctx)
	if loaders == nil || len(posts) == 0 {
		return
	}

	authorIds := make([]int64, 0, len(posts))
	for _, p := range posts {
		authorIds = append(authorIds, p.AuthorId)
	}
	if _, err := loaders.Users.LoadMany(ctx, authorIds); err != nil {
		logger.Log(ctx).Errorf("can't prime user loader: %v", err)
	}

	viewer, err := sessions.GetAuthUser(ctx)
	if err != nil {
		return // anonymous feed has no vote status
	}
	keys := make([]vote.Key, 0, len(posts))
	for _, p := range posts {
		keys = append(keys, vote.Key{UserId: viewer.Id, PostId: p.Id})
	}
	if _, err := loaders.Votes.LoadMany(ctx, keys); err != nil {
		logger.Log(ctx).Errorf("can't prime vote loader: %v", err)
	}
}

func (r *Resolver) PostQuery(p graphql.ResolveParams) (interface{}, error) {
	id := int64(p.Args["id"].(int))
	found, err := r.Posts.GetById(p.Context, id)
	if err != nil {
		logger.Log(p.Context).Errorf("can't load post %d: %v", id, err)
		return nil, err
	}
	if found == nil {
		return nil, nil
	}
	return found, nil
}

func (r *Resolver) MeQuery(p graphql.ResolveParams) (interface{}, error) {
	viewer, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, nil
	}
	return viewer, nil
}

// --- Post mutations ---

func (r *Resolver) CreatePost(p graphql.ResolveParams) (interface{}, error) {
	author, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	input := p.Args["input"].(map[string]interface{})
	newPost := &post.Post{
		Title:    input["title"].(string),
		Text:     input["text"].(string),
		AuthorId: author.Id,
	}
	if err := r.Posts.Add(p.Context, newPost); err != nil {
		logger.Log(p.Context).Errorf("can't add post: %v", err)
		return nil, err
	}
	return newPost, nil
}

func (r *Resolver) UpdatePost(p graphql.ResolveParams) (interface{}, error) {
	author, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	id := int64(p.Args["id"].(int))
	title := p.Args["title"].(string)
	text := p.Args["text"].(string)

	updated, err := r.Posts.Update(p.Context, id, author.Id, title, text)
	if err != nil {
		logger.Log(p.Context).Errorf("can't update post %d: %v", id, err)
		return nil, err
	}
	if updated == nil {
		// Missing and not-yours look the same on purpose.
		return nil, nil
	}
	return updated, nil
}

func (r *Resolver) DeletePost(p graphql.ResolveParams) (interface{}, error) {
	author, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	id := int64(p.Args["id"].(int))
	deleted, err := r.Posts.Delete(p.Context, id, author.Id)
	if err != nil {
		logger.Log(p.Context).Errorf("can't delete post %d: %v", id, err)
		return nil, err
	}
	return deleted, nil
}

func (r *Resolver) Vote(p graphql.ResolveParams) (interface{}, error) {
	voter, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, ErrNotAuthenticated
	}

	postId := int64(p.Args["postId"].(int))
	value := p.Args["value"].(int)

	if err := r.Votes.Cast(p.Context, voter.Id, postId, value); err != nil {
		logger.Log(p.Context).Errorf("can't cast vote on post %d: %v", postId, err)
		return nil, err
	}
	return true, nil
}

// --- User mutations ---

func (r *Resolver) Register(p graphql.ResolveParams) (interface{}, error) {
	options := p.Args["options"].(map[string]interface{})
	input := user.RegisterInput{
		Username: options["username"].(string),
		Email:    options["email"].(string),
		Password: options["password"].(string),
	}

	if errs := user.ValidateRegister(input); errs != nil {
		return &UserResponse{Errors: errs}, nil
	}

	salt := common.RandStringRunes(common.SaltLen)
	newUser := &user.User{
		Username: input.Username,
		Email:    input.Email,
		Password: common.HashPass(input.Password, salt),
	}
	if err := r.Users.Add(p.Context, newUser); err != nil {
		switch user.DuplicateField(err) {
		case "username":
			return fieldErrs("username", "Username already exists."), nil
		case "email":
			return fieldErrs("email", "Email already exists."), nil
		}
		logger.Log(p.Context).Errorf("can't add user: %v", err)
		return nil, err
	}

	return r.respondWithSession(p.Context, newUser)
}

func (r *Resolver) Login(p graphql.ResolveParams) (interface{}, error) {
	usernameOrEmail := p.Args["usernameOrEmail"].(string)
	password := p.Args["password"].(string)

	var (
		found *user.User
		err   error
	)
	if user.IsValidEmail(usernameOrEmail) {
		found, err = r.Users.GetByEmail(p.Context, usernameOrEmail)
	} else {
		found, err = r.Users.GetByUsername(p.Context, usernameOrEmail)
	}
	if err != nil {
		logger.Log(p.Context).Errorf("can't look up user %q: %v", usernameOrEmail, err)
		return nil, err
	}
	if found == nil {
		return fieldErrs("usernameOrEmail", "That username or email doesn't exist."), nil
	}

	if !common.CheckPass(found.Password, password) {
		return fieldErrs("password", "Password is incorrect."), nil
	}

	return r.respondWithSession(p.Context, found)
}

func (r *Resolver) Logout(p graphql.ResolveParams) (interface{}, error) {
	token, err := sessions.GetAuthToken(p.Context)
	if err != nil {
		return false, nil
	}
	if err := r.Sessions.Destroy(token); err != nil {
		logger.Log(p.Context).Errorf("can't destroy session: %v", err)
		return false, nil
	}
	return true, nil
}

func (r *Resolver) ForgotPassword(p graphql.ResolveParams) (interface{}, error) {
	email := p.Args["email"].(string)

	found, err := r.Users.GetByEmail(p.Context, email)
	if err != nil {
		logger.Log(p.Context).Errorf("can't look up email for password reset: %v", err)
		return nil, err
	}
	if found == nil {
		// Same answer as for a known address, so the mutation can't be
		// used to probe which emails have accounts.
		return true, nil
	}

	token, err := r.Sessions.CreateResetToken(found.Id)
	if err != nil {
		logger.Log(p.Context).Errorf("can't create reset token: %v", err)
		return nil, err
	}

	link := fmt.Sprintf("%s/%s", r.ResetURLBase, token)
	r.Mailer.Send(found.Email, "Change password",
		fmt.Sprintf("<a href='%s'>Change Password</a>", link))
	return true, nil
}

func (r *Resolver) ChangePassword(p graphql.ResolveParams) (interface{}, error) {
	token := p.Args["token"].(string)
	newPassword := p.Args["newPassword"].(string)

	if errs := user.ValidatePassword(newPassword, "newPassword"); errs != nil {
		return &UserResponse{Errors: errs}, nil
	}

	userId, found, err := r.Sessions.UserIdFromResetToken(token)
	if err != nil {
		logger.Log(p.Context).Errorf("can't read reset token: %v", err)
		return nil, err
	}
	if !found {
		return fieldErrs("token", "Token expired."), nil
	}

	owner, err := r.Users.GetById(p.Context, userId)
	if err != nil {
		logger.Log(p.Context).Errorf("can't load user %d for password change: %v", userId, err)
		return nil, err
	}
	if owner == nil {
		return fieldErrs("token", "User no longer exists."), nil
	}

	salt := common.RandStringRunes(common.SaltLen)
	if err := r.Users.UpdatePassword(p.Context, owner.Id, common.HashPass(newPassword, salt)); err != nil {
		logger.Log(p.Context).Errorf("can't update password for user %d: %v", owner.Id, err)
		return nil, err
	}
	if err := r.Sessions.DeleteResetToken(token); err != nil {
		logger.Log(p.Context).Errorf("can't consume reset token: %v", err)
	}

	// The user proved control of the mailbox; log them in right away.
	return r.respondWithSession(p.Context, owner)
}

func (r *Resolver) respondWithSession(ctx context.Context, u *user.User) (*UserResponse, error) {
	token, err := r.Sessions.CreateToken(u.Id)
	if err != nil {
		logger.Log(ctx).Errorf("can't create session for user %d: %v", u.Id, err)
		return nil, err
	}
	return &UserResponse{User: u, Token: token}, nil
}

// --- Field resolvers ---

// TextSnippet bounds the body preview shown in the feed.
func (r *Resolver) TextSnippet(p graphql.ResolveParams) (interface{}, error) {
	root := p.Source.(*post.Post)
	clipLength, _ := p.Args["clipLength"].(int)
	return post.Truncate(root.Text, clipLength, true), nil
}

// Creator resolves the post's author through the per-request loader.
func (r *Resolver) Creator(p graphql.ResolveParams) (interface{}, error) {
	root := p.Source.(*post.Post)
	loaders := Loaders(p.Context)
	if loaders == nil {
		return nil, errors.New("graph: no loaders in request context")
	}
	author, err := loaders.Users.Load(p.Context, root.AuthorId)
	if err != nil {
		logger.Log(p.Context).Errorf("can't load author of post %d: %v", root.Id, err)
		return nil, err
	}
	if author == nil {
		return nil, nil
	}
	return author, nil
}

// VoteStatus is the viewer's own vote on the post, null when the viewer
// is anonymous or never voted.
func (r *Resolver) VoteStatus(p graphql.ResolveParams) (interface{}, error) {
	root := p.Source.(*post.Post)
	viewer, err := sessions.GetAuthUser(p.Context)
	if err != nil {
		return nil, nil
	}
	loaders := Loaders(p.Context)
	if loaders == nil {
		return nil, errors.New("graph: no loaders in request context")
	}
	v, err := loaders.Votes.Load(p.Context, vote.Key{UserId: viewer.Id, PostId: root.Id})
	if err != nil {
		logger.Log(p.Context).Errorf("can't load vote status of post %d: %v", root.Id, err)
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.Value, nil
}

// UserEmail hides the address from everyone but its owner.
func (r *Resolver) UserEmail(p graphql.ResolveParams) (interface{}, error) {
	root := p.Source.(*user.User)
	viewer, err := sessions.GetAuthUser(p.Context)
	if err == nil && viewer.Id == root.Id {
		return root.Email, nil
	}
	return ``, nil
}

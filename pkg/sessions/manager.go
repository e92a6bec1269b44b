package sessions

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/gomodule/redigo/redis"
	"github.com/google/uuid"

	"forum/pkg/common"
	"forum/pkg/user"
)

const (
	sessionPrefix = "forumSessions:"
	resetPrefix   = "forumReset:"

	// Sessions live practically forever; logging out is explicit.
	sessionTTLSeconds = 60 * 60 * 24 * 365 * 10
	// Password-reset tokens are single-use and short-lived.
	resetTTLSeconds = 60 * 60
)

type (
	sessionKey string

	SessionManager struct {
		secret []byte
		redis  redis.Conn
	}

	jwtClaims struct {
		UserId int64 `json:"userId"`
		jwt.StandardClaims
	}
)

const (
	SessionKey sessionKey = "authenticatedUser"
	TokenKey   sessionKey = "authToken"
)

var ErrNoAuth = errors.New("sessions: no session found")

func NewSessionManager(secret string, conn redis.Conn) *SessionManager {
	return &SessionManager{
		secret: []byte(secret),
		redis:  conn,
	}
}

// CreateToken opens a session for the user: the session id goes to Redis
// as the source of truth, the returned JWT only carries it to the client.
func (sm *SessionManager) CreateToken(userId int64) (string, error) {
	sessionId := common.RandStringRunes(10)

	_, err := sm.redis.Do("SETEX", sessionPrefix+sessionId, sessionTTLSeconds, userId)
	if err != nil {
		return ``, fmt.Errorf("sessions: failed SETEX to Redis: %w", err)
	}

	data := jwtClaims{
		UserId: userId,
		StandardClaims: jwt.StandardClaims{
			Id: sessionId,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, data).SignedString(sm.secret)
	if err != nil {
		return ``, fmt.Errorf("sessions: failed signing token: %w", err)
	}
	return token, nil
}

// UserIdFromToken validates the bearer token and checks the session is
// still registered in Redis. A signed token whose session was destroyed
// (logout) is rejected.
func (sm *SessionManager) UserIdFromToken(authHeader string) (int64, error) {
	claims, err := sm.parseClaims(authHeader)
	if err != nil {
		return 0, err
	}

	storedUserId, err := redis.Int64(sm.redis.Do("GET", sessionPrefix+claims.Id))
	if errors.Is(err, redis.ErrNil) {
		return 0, ErrNoAuth
	}
	if err != nil {
		return 0, fmt.Errorf("sessions: failed GET from Redis: %w", err)
	}
	if storedUserId != claims.UserId {
		return 0, errors.New("sessions: token doesn't match the session")
	}
	return storedUserId, nil
}

// Destroy removes the session behind the token. The JWT itself can't be
// recalled, but without its Redis entry it is dead.
func (sm *SessionManager) Destroy(authHeader string) error {
	claims, err := sm.parseClaims(authHeader)
	if err != nil {
		return err
	}
	if _, err := sm.redis.Do("DEL", sessionPrefix+claims.Id); err != nil {
		return fmt.Errorf("sessions: failed DEL from Redis: %w", err)
	}
	return nil
}

func (sm *SessionManager) parseClaims(authHeader string) (*jwtClaims, error) {
	if authHeader == "" {
		return nil, ErrNoAuth
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	token, err := jwt.ParseWithClaims(tokenString, &jwtClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return sm.secret, nil
		})
	if err != nil {
		return nil, fmt.Errorf("sessions: failed parsing token: %w", err)
	}

	claims, ok := token.Claims.(*jwtClaims)
	if !ok {
		return nil, errors.New("sessions: can't cast token to claims")
	}
	if !token.Valid {
		return nil, errors.New("sessions: token is not valid")
	}
	return claims, nil
}

// CreateResetToken stores a one-hour password-reset token for the user.
func (sm *SessionManager) CreateResetToken(userId int64) (string, error) {
	token := uuid.NewString()
	_, err := sm.redis.Do("SETEX", resetPrefix+token, resetTTLSeconds, userId)
	if err != nil {
		return ``, fmt.Errorf("sessions: failed storing reset token: %w", err)
	}
	return token, nil
}

// UserIdFromResetToken resolves a reset token. found is false for
// unknown or expired tokens.
func (sm *SessionManager) UserIdFromResetToken(token string) (userId int64, found bool, err error) {
	userId, err = redis.Int64(sm.redis.Do("GET", resetPrefix+token))
	if errors.Is(err, redis.ErrNil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("sessions: failed reading reset token: %w", err)
	}
	return userId, true, nil
}

// DeleteResetToken consumes the token after a successful password change.
func (sm *SessionManager) DeleteResetToken(token string) error {
	if _, err := sm.redis.Do("DEL", resetPrefix+token); err != nil {
		return fmt.Errorf("sessions: failed deleting reset token: %w", err)
	}
	return nil
}

func GetAuthUser(ctx context.Context) (*user.User, error) {
	user, ok := ctx.Value(SessionKey).(*user.User)
	if !ok || user == nil {
		return nil, ErrNoAuth
	}
	return user, nil
}

// GetAuthToken returns the raw Authorization header the request came
// with; logout needs it to find the session to destroy.
func GetAuthToken(ctx context.Context) (string, error) {
	token, ok := ctx.Value(TokenKey).(string)
	if !ok || token == "" {
		return ``, ErrNoAuth
	}
	return token, nil
}

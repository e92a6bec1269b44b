package user

import "time"

type User struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password []byte `json:"-"`

	Created time.Time `json:"createdAt"`
	Updated time.Time `json:"updatedAt"`
}

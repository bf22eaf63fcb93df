package domain

// User is the identity of an account as seen by other members.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Credentials are submitted to the login and signup endpoints.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

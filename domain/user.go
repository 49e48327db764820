package domain

// User is an account stored in the users document.
type User struct {
	ID             string  `json:"id"`
	Username       string  `json:"username"`
	Email          string  `json:"email"`
	HashedPassword string  `json:"hashed_password"`
	CreatedAt      string  `json:"created_at,omitempty"`
	UpdatedAt      *string `json:"updated_at,omitempty"`
}

// Users is the users document keyed by username.
type Users map[string]User

package types

// User is the identity the persistence gateway scopes all project access by.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

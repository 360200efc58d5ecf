package domain

// User is a presence list entry for one connected client.
type User struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

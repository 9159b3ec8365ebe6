package models

// Book belongs to exactly one user.
type Book struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	UserID string `json:"user_id"`
}

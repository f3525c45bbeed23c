package models

// Repository is a public repository as listed for a user.
//
// Slices of Repository keep the order in which the API returned them.
type Repository struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	HTMLURL     string `json:"html_url"`
}

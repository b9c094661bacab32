package api

// UsersResponse from GET /users
type UsersResponse struct {
	Data []User `json:"data"`
}

// User represents a user from the Helix API.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	Type            string `json:"type"`
	BroadcasterType string `json:"broadcaster_type"`
	CreatedAt       string `json:"created_at"` // RFC 3339
}

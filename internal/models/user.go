package models

type User struct {
	ID    int64   `json:"id,string"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

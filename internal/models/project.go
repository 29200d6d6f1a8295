package models

import "time"

type Project struct {
	ID        int64     `json:"id,string"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectMember links a user to a project. Project-channel memberships and
// message attribution reference this identity rather than the raw user.
type ProjectMember struct {
	ID        int64     `json:"id,string"`
	ProjectID int64     `json:"project_id,string"`
	UserID    int64     `json:"user_id,string"`
	JoinedAt  time.Time `json:"joined_at"`
}

package domain

import (
	"context"
)

type User struct {
	ID           int    `json:"id"`
	Email        string `json:"email"`
	ProjectQuota int    `json:"project_quota"`
	NumProjects  int    `json:"num_projects"`
}

func (u *User) QuotaExceeded() bool {
	return u.ProjectQuota != 0 && u.NumProjects >= u.ProjectQuota
}

type UserRepository interface {
	GetByID(ctx context.Context, id int) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Insert(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
}

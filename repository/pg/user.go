package pg

import (
	"context"
	"fmt"

	"github.com/craftfolio/backend/api/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

type UserPostgresRepository struct {
	pool *pgxpool.Pool
}

func NewUserPostgresRepository(pool *pgxpool.Pool) *UserPostgresRepository {
	return &UserPostgresRepository{
		pool: pool,
	}
}

// num_projects is derived at read time; project rows are written through the
// record store, which knows nothing about the users table.
const userSelect = `SELECT id, email, project_quota,
(SELECT COUNT(*) FROM projects WHERE projects.owner_id = users.id) AS num_projects
FROM users`

func (u *UserPostgresRepository) GetByID(ctx context.Context, id int) (*domain.User, error) {
	row := u.pool.QueryRow(ctx, userSelect+" WHERE id = $1", id)
	user := domain.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.ProjectQuota, &user.NumProjects); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserPostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := u.pool.QueryRow(ctx, userSelect+" WHERE email = $1", email)
	user := domain.User{}
	if err := row.Scan(&user.ID, &user.Email, &user.ProjectQuota, &user.NumProjects); err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *UserPostgresRepository) Insert(ctx context.Context, user *domain.User) error {
	row := u.pool.QueryRow(
		ctx,
		"INSERT INTO users(email, project_quota) VALUES($1, $2) RETURNING id",
		user.Email,
		user.ProjectQuota,
	)
	if err := row.Scan(&user.ID); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (u *UserPostgresRepository) Update(ctx context.Context, user *domain.User) error {
	_, err := u.pool.Exec(ctx, "UPDATE users SET project_quota = $1 WHERE id = $2", user.ProjectQuota, user.ID)
	if err != nil {
		return err
	}
	return nil
}

package database

import (
	"context"

	"github.com/google/uuid"
)

// User is a staff account. Staff management lives in another system; this
// store only reads users to resolve logins into role + restaurant scope.
type User struct {
	ID             uuid.UUID
	RestaurantID   uuid.UUID
	FullName       string
	Email          string
	HashedPassword string
	Role           string
}

// GetUserByEmail returns the user with the given email, or pgx.ErrNoRows.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := q.pool.QueryRow(ctx,
		`SELECT id, restaurant_id, full_name, email, hashed_password, role
		 FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.RestaurantID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

package model

import "time"

// Roles carried in the users.role column and the JWT role claim.
const (
    RoleUser  = "USER"  // regular player
    RoleAdmin = "ADMIN" // may delete any phillboard and set balances
)

// User is a row of the `users` table.  Username is public: phillboards
// show it as their author and leaderboards rank by it.  Handlers never
// serialise a User directly; PasswordHash stays in the repository layer.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email, stored lower-cased
    Username     string    // users.username, unique
    PasswordHash string    // users.password_hash (bcrypt)
    Role         string    // RoleUser or RoleAdmin
    IsActive     bool      // inactive users cannot log in and drop off leaderboards
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}


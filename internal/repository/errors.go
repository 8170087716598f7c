// Package repository implements MySQL persistence for users, refresh
// tokens, balances, phillboards and edit history.  Phillboard, balance
// and history repositories satisfy the economy storage ports and report
// missing rows with the economy sentinels; the errors below cover the
// account tables only.
package repository

import "errors"

// ErrEmailExists is returned when registering an email already in use.
// Handlers translate it into an HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrUsernameExists is returned when registering a taken username.
var ErrUsernameExists = errors.New("username already exists")

// Package session exposes the "current user" capability the ledger
// consumes. Authentication itself happens elsewhere.
package session

import (
	"context"
	"errors"
	"strings"
)

// ErrNoSession is returned when no user is signed in.
var ErrNoSession = errors.New("no authenticated session found")

type User struct {
	ID string
}

// Provider reports the signed-in user.
type Provider interface {
	Current(ctx context.Context) (User, error)
}

// Static is a Provider with a fixed user id. An empty id means signed out.
type Static string

func (s Static) Current(context.Context) (User, error) {
	id := strings.TrimSpace(string(s))
	if id == "" {
		return User{}, ErrNoSession
	}
	return User{ID: id}, nil
}

type ctxKey struct{}

// WithUser stores u on ctx for FromContext.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext is a Provider reading the user set by WithUser.
type FromContext struct{}

func (FromContext) Current(ctx context.Context) (User, error) {
	u, ok := ctx.Value(ctxKey{}).(User)
	if !ok || u.ID == "" {
		return User{}, ErrNoSession
	}
	return u, nil
}

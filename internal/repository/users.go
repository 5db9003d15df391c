package repository

import (
	"context"
	"fmt"
	"strings"

	"pisoheroes/internal/core"
	"pisoheroes/internal/remote"
)

type Users struct {
	c remote.Client
}

func userFromRecord(r remote.Record) core.User {
	return core.User{
		ID:           r.Int64("id"),
		Username:     r.String("username"),
		Email:        r.String("email"),
		PasswordHash: r.String("password_hash"),
		CreatedAt:    r.Time("created_at"),
	}
}

func (u *Users) Create(ctx context.Context, user core.User) (core.User, error) {
	rec, err := u.c.Insert(ctx, tableUsers, remote.Record{
		"username":      strings.TrimSpace(user.Username),
		"email":         strings.TrimSpace(user.Email),
		"password_hash": user.PasswordHash,
	})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return userFromRecord(rec), nil
}

func (u *Users) Get(ctx context.Context, id int64) (core.User, error) {
	rec, err := one(u.c.Select(ctx, remote.From(tableUsers).Where(remote.Eq("id", id))))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return userFromRecord(rec), nil
}

func (u *Users) GetByUsername(ctx context.Context, username string) (core.User, error) {
	rec, err := one(u.c.Select(ctx, remote.From(tableUsers).Where(remote.Eq("username", strings.TrimSpace(username)))))
	if err != nil {
		return core.User{}, fmt.Errorf("get user %q: %w", username, err)
	}
	return userFromRecord(rec), nil
}

func (u *Users) List(ctx context.Context) ([]core.User, error) {
	recs, err := u.c.Select(ctx, remote.From(tableUsers).OrderBy("id", false))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.User, 0, len(recs))
	for _, r := range recs {
		out = append(out, userFromRecord(r))
	}
	return out, nil
}

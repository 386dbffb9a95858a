// Package services – UserService
//
// This file implements UserService, the read-only user directory. Accounts
// are provisioned outside the API; views carry the caller's subscription
// flag for each user.
package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
	"github.com/tbourn/go-recipes-backend/internal/repo"
	"github.com/tbourn/go-recipes-backend/internal/utils"
)

// UserService lists and reads users.
type UserService struct {
	DB *gorm.DB
}

// List returns a page of users ordered by username.
func (s *UserService) List(ctx context.Context, p domain.Principal, page, pageSize int) ([]UserView, int64, error) {
	pg := utils.NewPage(page, pageSize)
	total, err := repo.CountUsers(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []UserView{}, 0, nil
	}
	users, err := repo.ListUsersPage(ctx, s.DB, pg.Offset(), pg.Size)
	if err != nil {
		return nil, 0, err
	}
	views, err := s.views(ctx, p, users)
	return views, total, err
}

// Get returns one user.
func (s *UserService) Get(ctx context.Context, p domain.Principal, id int64) (*UserView, error) {
	u, err := repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	views, err := s.views(ctx, p, []domain.User{*u})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Me returns the principal's own user.
func (s *UserService) Me(ctx context.Context, p domain.Principal) (*UserView, error) {
	if !p.Authenticated() {
		return nil, ErrLoginRequired
	}
	return s.Get(ctx, p, p.UserID)
}

func (s *UserService) views(ctx context.Context, p domain.Principal, users []domain.User) ([]UserView, error) {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subs, err := repo.SubscribedAuthorIDs(ctx, s.DB, p.UserID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, len(users))
	for i, u := range users {
		out[i] = userView(u, subs[u.ID])
	}
	return out, nil
}

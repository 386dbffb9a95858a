// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Subscription model (follower -> author edges).
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-recipes-backend/internal/domain"
)

// CreateSubscription inserts the follower -> author edge. Duplicate edges
// surface as driver errors; self edges violate a check constraint.
func CreateSubscription(ctx context.Context, db *gorm.DB, userID, authorID int64) error {
	return db.WithContext(ctx).
		Omit("User", "Author").
		Create(&domain.Subscription{UserID: userID, AuthorID: authorID}).Error
}

// DeleteSubscription removes the edge and reports whether a row was deleted.
func DeleteSubscription(ctx context.Context, db *gorm.DB, userID, authorID int64) (bool, error) {
	res := db.WithContext(ctx).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Delete(&domain.Subscription{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SubscriptionExists reports whether userID follows authorID.
func SubscriptionExists(ctx context.Context, db *gorm.DB, userID, authorID int64) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&n).Error
	return n > 0, err
}

// CountSubscriptions returns how many authors userID follows.
func CountSubscriptions(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ?", userID).
		Count(&n).Error
	return n, err
}

// ListSubscribedAuthorsPage returns the authors userID follows, most recent
// subscription first.
func ListSubscribedAuthorsPage(ctx context.Context, db *gorm.DB, userID int64, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.created_at DESC").
		Order("subscriptions.id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// SubscribedAuthorIDs returns the subset of authorIDs that userID follows.
func SubscribedAuthorIDs(ctx context.Context, db *gorm.DB, userID int64, authorIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(authorIDs))
	if userID <= 0 || len(authorIDs) == 0 {
		return out, nil
	}
	var ids []int64
	err := db.WithContext(ctx).
		Model(&domain.Subscription{}).
		Where("user_id = ? AND author_id IN ?", userID, authorIDs).
		Pluck("author_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

package utils

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model by primary key
// (may return NotFoundError)
func FetchModel[T any](ctx context.Context, resource string, id int) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), resource, id)
}

// FetchModelTx is FetchModel inside an open transaction.
func FetchModelTx[T any](tx *gorm.DB, resource string, id int) (*T, error) {
	var result T
	err := tx.First(&result, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError(resource, id)
		}
		return nil, err
	}
	return &result, nil
}

// count rows of T matching the condition
func ResourceCountWhere[T any](tx *gorm.DB, cond string, args ...interface{}) (int64, error) {
	var count int64
	var model T
	err := tx.Model(&model).Where(cond, args...).Count(&count).Error
	return count, err
}

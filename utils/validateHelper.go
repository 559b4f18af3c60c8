package utils

import (
	"context"

	"github.com/go-playground/validator/v10"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
)

var validate = validator.New()

// ValidateStruct runs the validator tags declared on an input payload.
func ValidateStruct(input interface{}) error {
	return validate.Struct(input)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"error": err.Error()}
	}

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// ValidateResourceId checks the id exists, returning ErrorRecordNotFound.
func ValidateResourceId[T any](ctx context.Context, id interface{}) error {
	count, err := ResourceCountWhere[T](ctx, "id = ?", id)
	if err != nil {
		return err
	}
	if count <= 0 {
		return ErrorRecordNotFound
	}
	return nil
}

// ResourceCountWhere counts records matching the condition.
func ResourceCountWhere[T any](ctx context.Context, condition string, value ...interface{}) (int64, error) {
	var model T

	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Model(&model)
	var count int64
	dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// FetchModel loads a record by id, returning ErrorRecordNotFound when absent.
func FetchModel[T any](ctx context.Context, id interface{}) (*T, error) {
	var model T
	db := config.GetDB()
	err := db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		return nil, ErrorRecordNotFound
	}
	return &model, nil
}

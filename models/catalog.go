package models

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
	"bitbucket.org/mmdatafocus/outlet_backend/utils"
)

// Catalog read models. Ingredient/variant/recipe management is owned by a
// separate service; these tables are maintained here only for reads, seeding
// and tests.

type Ingredient struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null;uniqueIndex" json:"name"`
	UnitType  UnitType  `gorm:"size:10;not null" json:"unit_type"`
	UnitLabel string    `gorm:"size:20;not null" json:"unit_label"` // kg, l, pcs...
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type ProductVariant struct {
	ID        int             `gorm:"primary_key" json:"id"`
	Name      string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"price"`
	IsActive  *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Recipe maps one ingredient consumed per unit of a variant. At most one row
// per variant carries is_primary; that ingredient drives sales derivation.
type Recipe struct {
	ID           int             `gorm:"primary_key" json:"id"`
	VariantId    int             `gorm:"index:idx_recipe_variant_ing,priority:1;not null" json:"variant_id"`
	IngredientId int             `gorm:"index:idx_recipe_variant_ing,priority:2;not null" json:"ingredient_id"`
	Amount       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	IsPrimary    *bool           `gorm:"not null;default:false" json:"is_primary"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name      string   `json:"name" validate:"required"`
	UnitType  UnitType `json:"unit_type" validate:"required"`
	UnitLabel string   `json:"unit_label" validate:"required"`
}

func CreateIngredient(ctx context.Context, input *NewIngredient) (*Ingredient, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.UnitType.Valid() {
		return nil, errors.New("invalid unit type")
	}

	db := config.GetDB()
	ingredient := Ingredient{
		Name:      input.Name,
		UnitType:  input.UnitType,
		UnitLabel: input.UnitLabel,
		IsActive:  utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

type NewProductVariant struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price"`
}

func CreateProductVariant(ctx context.Context, input *NewProductVariant) (*ProductVariant, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if input.Price.IsNegative() {
		return nil, errors.New("price must not be negative")
	}

	db := config.GetDB()
	variant := ProductVariant{
		Name:     input.Name,
		Price:    input.Price,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

type NewRecipe struct {
	VariantId    int             `json:"variant_id" validate:"required"`
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Amount       decimal.Decimal `json:"amount"`
	IsPrimary    bool            `json:"is_primary"`
}

func CreateRecipe(ctx context.Context, input *NewRecipe) (*Recipe, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, errors.New("recipe amount must be positive")
	}
	if err := utils.ValidateResourceId[ProductVariant](ctx, input.VariantId); err != nil {
		return nil, errors.New("variant not found")
	}
	if err := utils.ValidateResourceId[Ingredient](ctx, input.IngredientId); err != nil {
		return nil, errors.New("ingredient not found")
	}

	db := config.GetDB()
	if input.IsPrimary {
		var count int64
		if err := db.WithContext(ctx).Model(&Recipe{}).
			Where("variant_id = ? AND is_primary = 1", input.VariantId).
			Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, errors.New("variant already has a primary ingredient")
		}
	}

	recipe := Recipe{
		VariantId:    input.VariantId,
		IngredientId: input.IngredientId,
		Amount:       input.Amount,
		IsPrimary:    &input.IsPrimary,
	}
	if err := db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, err
	}
	if err := InvalidateRecipeCache(); err != nil {
		return nil, err
	}
	return &recipe, nil
}

func ToggleActiveIngredient(ctx context.Context, id int, isActive bool) (*Ingredient, error) {
	ingredient, err := utils.FetchModel[Ingredient](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(ingredient).
		Update("is_active", isActive).Error; err != nil {
		return nil, err
	}
	return ingredient, nil
}

func GetActiveIngredients(ctx context.Context) ([]Ingredient, error) {
	db := config.GetDB()
	var ingredients []Ingredient
	if err := db.WithContext(ctx).
		Where("is_active = 1").
		Order("id").
		Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

func GetActiveVariants(ctx context.Context) ([]ProductVariant, error) {
	db := config.GetDB()
	var variants []ProductVariant
	if err := db.WithContext(ctx).
		Where("is_active = 1").
		Order("id").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

func GetAllRecipes(ctx context.Context) ([]Recipe, error) {
	db := config.GetDB()
	var recipes []Recipe
	if err := db.WithContext(ctx).Order("id").Find(&recipes).Error; err != nil {
		return nil, err
	}
	return recipes, nil
}

// PrimaryRecipe is the derivation driver for one variant.
type PrimaryRecipe struct {
	IngredientId int             `json:"ingredient_id"`
	Amount       decimal.Decimal `json:"amount"`
}

const recipeCacheKey = "primaryRecipeMap"

// GetPrimaryRecipeMap returns variantId => primary recipe, redis-cached.
func GetPrimaryRecipeMap(ctx context.Context) (map[int]PrimaryRecipe, error) {
	primaries := make(map[int]PrimaryRecipe)
	exists, err := config.GetRedisObject(recipeCacheKey, &primaries)
	if err != nil {
		return nil, err
	}
	if exists {
		return primaries, nil
	}

	db := config.GetDB()
	var recipes []Recipe
	if err := db.WithContext(ctx).
		Where("is_primary = 1").
		Find(&recipes).Error; err != nil {
		return nil, err
	}
	for _, recipe := range recipes {
		primaries[recipe.VariantId] = PrimaryRecipe{
			IngredientId: recipe.IngredientId,
			Amount:       recipe.Amount,
		}
	}
	if err := config.SetRedisObject(recipeCacheKey, &primaries, 10*time.Minute); err != nil {
		return nil, err
	}
	return primaries, nil
}

func InvalidateRecipeCache() error {
	return config.RemoveRedisKey(recipeCacheKey)
}

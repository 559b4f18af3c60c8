package workflow

import (
	"sort"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/outlet_backend/models"
)

// Sales derivation: for every variant with a designated primary ingredient,
// quantity sold = ceil(usage(primary) / recipeAmount), clamped at 0. The
// price is snapshotted into the row at computation time. Pure: same usage and
// catalog always produce the same rows.

// BuildDerivedSales returns the derived rows for a day plus the ids of
// variants skipped for lacking a primary ingredient (non-fatal).
func BuildDerivedSales(
	dayId int,
	usage map[int]decimal.Decimal,
	variants []models.ProductVariant,
	primaries map[int]models.PrimaryRecipe,
) ([]models.DerivedSale, []int) {

	sales := make([]models.DerivedSale, 0, len(variants))
	var skipped []int

	for _, variant := range variants {
		primary, ok := primaries[variant.ID]
		if !ok || !primary.Amount.IsPositive() {
			skipped = append(skipped, variant.ID)
			continue
		}

		rawQty := usage[primary.IngredientId].Div(primary.Amount)
		qtySold := rawQty.Ceil().IntPart()
		if qtySold < 0 {
			qtySold = 0
		}

		revenue := variant.Price.Mul(decimal.NewFromInt(qtySold))
		sales = append(sales, models.DerivedSale{
			DayId:     dayId,
			VariantId: variant.ID,
			QtySold:   int(qtySold),
			UnitPrice: variant.Price,
			Revenue:   revenue,
		})
	}

	sort.Slice(sales, func(i, j int) bool { return sales[i].VariantId < sales[j].VariantId })
	sort.Ints(skipped)
	return sales, skipped
}

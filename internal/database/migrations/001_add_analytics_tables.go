package migrations

import (
	"github.com/quantfork/tradeflow/internal/types"
	"gorm.io/gorm"
)

// AddAnalyticsTables creates the trade and snapshot tables consumed by
// the analytics read path. Kept separate from the general auto-migration
// so the composite query indexes are guaranteed before first use.
func AddAnalyticsTables(db *gorm.DB) error {
	if err := db.AutoMigrate(&types.Trade{}); err != nil {
		return err
	}

	if err := db.AutoMigrate(&types.PortfolioSnapshot{}); err != nil {
		return err
	}

	return nil
}

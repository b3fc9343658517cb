package datastore

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/windwatch/windwatch-go/internal/errors"
)

// SaveWindfarm upserts a windfarm mirror record.
func (ds *DataStore) SaveWindfarm(farm *Windfarm) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "is_active"}),
	}).Create(farm).Error
	if err != nil {
		return dbError(err, "save_windfarm")
	}
	return nil
}

// GetWindfarm fetches a windfarm by id.
func (ds *DataStore) GetWindfarm(id uint) (*Windfarm, error) {
	var farm Windfarm
	err := ds.DB.First(&farm, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWindfarmNotFound
	}
	if err != nil {
		return nil, dbError(err, "get_windfarm")
	}
	return &farm, nil
}

// GetActiveWindfarmIDs returns the ids of all active windfarms, for
// all_windfarms scope expansion.
func (ds *DataStore) GetActiveWindfarmIDs() ([]uint, error) {
	var ids []uint
	err := ds.DB.Model(&Windfarm{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, dbError(err, "active_windfarm_ids")
	}
	return ids, nil
}

// AddPortfolioMember adds a windfarm to a portfolio; duplicates are a
// no-op.
func (ds *DataStore) AddPortfolioMember(portfolioID, windfarmID uint) error {
	membership := PortfolioMembership{PortfolioID: portfolioID, WindfarmID: windfarmID}
	err := ds.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&membership).Error
	if err != nil {
		return dbError(err, "add_portfolio_member")
	}
	return nil
}

// GetPortfolioWindfarmIDs returns the current membership of a portfolio.
func (ds *DataStore) GetPortfolioWindfarmIDs(portfolioID uint) ([]uint, error) {
	var ids []uint
	err := ds.DB.Model(&PortfolioMembership{}).
		Where("portfolio_id = ?", portfolioID).
		Order("windfarm_id").
		Pluck("windfarm_id", &ids).Error
	if err != nil {
		return nil, dbError(err, "portfolio_windfarm_ids")
	}
	return ids, nil
}

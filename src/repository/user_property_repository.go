package repository

import (
	"context"

	"gorm.io/gorm"

	"wikiguard/src/database"
	"wikiguard/src/model"
)

// PropertyFilter selects user_properties rows by property name.
type PropertyFilter struct {
	// Property matches one name exactly.
	Property string
	// Exclude skips these names.
	Exclude []string
	// ExcludePrefix skips names starting with it.
	ExcludePrefix string
}

func (f PropertyFilter) apply(query *gorm.DB) *gorm.DB {
	if f.Property != "" {
		query = query.Where("up_property = ?", f.Property)
	}
	if f.ExcludePrefix != "" {
		query = query.Where("up_property NOT LIKE ?", f.ExcludePrefix+"%")
	}
	if len(f.Exclude) > 0 {
		query = query.Where("up_property NOT IN ?", f.Exclude)
	}
	return query
}

// UserPropertyRepository reads and removes stored user preferences.
type UserPropertyRepository struct {
	db *gorm.DB
}

func NewUserPropertyRepository(db *gorm.DB) *UserPropertyRepository {
	return &UserPropertyRepository{db: db}
}

// FindBatch returns up to limit rows matching filter, skipping offset rows.
// The table has no primary key, so whole rows are returned.
func (r *UserPropertyRepository) FindBatch(ctx context.Context, filter PropertyFilter, limit, offset int) ([]model.UserProperty, error) {
	query := filter.apply(r.db.WithContext(ctx)).
		Order("up_user, up_property").
		Limit(limit)
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []model.UserProperty
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Delete removes exactly row inside tx.
func (r *UserPropertyRepository) Delete(tx *database.Tx, row model.UserProperty) (int64, error) {
	return tx.Delete(&model.UserProperty{},
		"up_user = ? AND up_property = ? AND up_value = ?", row.User, row.Property, row.Value)
}

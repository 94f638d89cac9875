package repository

import (
	"context"

	"github.com/reqtrail/reqtrail/internal/model"
	"gorm.io/gorm"
)

type GormHistoryRepo struct {
	db *gorm.DB
}

func NewGormHistoryRepo(db *gorm.DB) (*GormHistoryRepo, error) {
	if err := db.AutoMigrate(&model.RequestRecord{}); err != nil {
		return nil, err
	}
	return &GormHistoryRepo{db: db}, nil
}

func (r *GormHistoryRepo) Insert(ctx context.Context, rec *model.RequestRecord) error {
	if rec == nil {
		return nil
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormHistoryRepo) List(ctx context.Context, q model.HistoryQuery) ([]*model.RequestRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	tx := r.db.WithContext(ctx).Model(&model.RequestRecord{})
	if q.SinceSeq > 0 {
		tx = tx.Where("seq >= ?", q.SinceSeq)
	}
	if q.From != nil {
		tx = tx.Where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		tx = tx.Where("created_at <= ?", *q.To)
	}
	for key, value := range q.Filter {
		col, ok := filterColumn(key)
		if !ok {
			// unknown filter keys never match, same as the in-memory
			// and Redis backends
			return []*model.RequestRecord{}, nil
		}
		tx = tx.Where(col+" = ?", value)
	}

	records := make([]*model.RequestRecord, 0, limit)
	err := tx.Order(orderColumn(q.OrderBy) + " DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *GormHistoryRepo) Clear(ctx context.Context) (int64, error) {
	tx := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.RequestRecord{})
	return tx.RowsAffected, tx.Error
}

func (r *GormHistoryRepo) MaxID(ctx context.Context) (uint64, error) {
	var max uint64
	err := r.db.WithContext(ctx).Model(&model.RequestRecord{}).
		Select("COALESCE(MAX(seq), 0)").Scan(&max).Error
	return max, err
}

// filterColumn maps a view-filter key to its column. Keys outside this set
// are ignored rather than interpolated into SQL.
func filterColumn(key string) (string, bool) {
	switch key {
	case "method", "path", "route_name", "username", "ip", "label", "status_code":
		return key, true
	default:
		return "", false
	}
}

func orderColumn(key string) string {
	switch key {
	case "seq", "method", "path", "route_name", "username", "ip", "status_code", "created_at":
		return key
	default:
		return "created_at"
	}
}

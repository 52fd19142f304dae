package repositories

import (
	"context"
	"errors"

	"github.com/you/mcmarket/domain"
	"github.com/you/mcmarket/internal/infrastructure/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// base gives every gorm repository the connection bound to the request context
type base struct {
	db *gorm.DB
}

func (b base) conn(ctx context.Context) *gorm.DB {
	return database.Conn(ctx, b.db)
}

// notFound maps gorm.ErrRecordNotFound to the repository's sentinel
func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func paginate(page domain.Page) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if page.Limit <= 0 {
			return db
		}
		return db.Offset(page.Offset()).Limit(page.Limit)
	}
}

// findPage counts the rows matched by scope and loads one page of them
func findPage[T any](db *gorm.DB, scope func(*gorm.DB) *gorm.DB, order string, page domain.Page, preload ...string) ([]T, int64, error) {
	var total int64
	if err := db.Model(new(T)).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q := db.Scopes(scope, paginate(page)).Order(order)
	for _, p := range preload {
		q = q.Preload(p)
	}
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

type groupCount struct {
	GroupKey string
	Count    int64
}

// countBy returns row counts grouped by column
func countBy(db *gorm.DB, model interface{}, column string) (map[string]int64, error) {
	var rows []groupCount
	err := db.Model(model).
		Select(column + " AS group_key, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.GroupKey] = r.Count
	}
	return out, nil
}

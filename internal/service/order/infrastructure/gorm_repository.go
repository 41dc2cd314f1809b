package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"storefront/internal/pkg/database"
	"storefront/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的关系型数据库实现。
type GormOrderRepository struct {
	conn database.Conn
}

func NewGormOrderRepository(conn database.Conn) *GormOrderRepository {
	return &GormOrderRepository{conn: conn}
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}
	m, err := toModel(order)
	if err != nil {
		return err
	}
	if err := db.Create(m).Error; err != nil {
		if database.IsDuplicateKey(err) {
			return errors.Wrapf(domain.ErrOrderExists, "order %s", order.OrderID)
		}
		return errors.Wrap(err, "insert order")
	}
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.findOne(ctx, "order_id = ?", id)
}

func (r *GormOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*domain.Order, error) {
	return r.findOne(ctx, "session_id = ?", sessionID)
}

func (r *GormOrderRepository) findOne(ctx context.Context, cond string, arg string) (*domain.Order, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	var m OrderModel
	if err := db.Where(cond, arg).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, errors.Wrap(err, "query order")
	}
	return toDomain(&m)
}

func (r *GormOrderRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Order, error) {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return nil, err
	}
	q := db.Model(&OrderModel{}).Order("created_at DESC").Order("order_id DESC").Limit(filter.NormalizeLimit())
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}

	var rows []OrderModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	out := make([]*domain.Order, 0, len(rows))
	for i := range rows {
		o, err := toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// UpdateIfStatus 用 WHERE status = expected 的单条 UPDATE 实现比较并交换。
func (r *GormOrderRepository) UpdateIfStatus(ctx context.Context, order *domain.Order, expected domain.State) error {
	db, err := r.conn.DB(ctx)
	if err != nil {
		return err
	}
	m, err := toModel(order)
	if err != nil {
		return err
	}

	res := db.Model(&OrderModel{}).
		Where("order_id = ? AND status = ?", order.OrderID, string(expected)).
		Updates(mutableColumns(m))
	if res.Error != nil {
		return errors.Wrap(res.Error, "update order")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// 区分订单不存在和状态已变化
	var count int64
	if err := db.Model(&OrderModel{}).Where("order_id = ?", order.OrderID).Count(&count).Error; err != nil {
		return errors.Wrap(err, "check order existence")
	}
	if count == 0 {
		return domain.ErrOrderNotFound
	}
	return domain.ErrStatusConflict
}

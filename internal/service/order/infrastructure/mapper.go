package infrastructure

import (
	"encoding/json"

	"github.com/pkg/errors"

	"storefront/internal/service/order/domain"
)

func toModel(o *domain.Order) (*OrderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, errors.Wrap(err, "encode order items")
	}
	m := &OrderModel{
		OrderID:       o.OrderID,
		SessionID:     o.SessionID,
		Items:         string(items),
		Total:         o.Total,
		Status:        string(o.Status),
		CustomerEmail: o.CustomerEmail,
		StockPending:  o.StockPending,
		EmailError:    o.EmailError,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if m.ShippingAddress, err = encodeOptional(o.ShippingAddress, o.ShippingAddress == nil); err != nil {
		return nil, err
	}
	if m.StockReductionErrors, err = encodeOptional(o.StockReductionErrors, len(o.StockReductionErrors) == 0); err != nil {
		return nil, err
	}
	if m.StockRollbackErrors, err = encodeOptional(o.StockRollbackErrors, len(o.StockRollbackErrors) == 0); err != nil {
		return nil, err
	}
	return m, nil
}

// mutableColumns 是 UpdateIfStatus 写入的列。
func mutableColumns(m *OrderModel) map[string]interface{} {
	return map[string]interface{}{
		"items":                  m.Items,
		"status":                 m.Status,
		"customer_email":         m.CustomerEmail,
		"shipping_address":       m.ShippingAddress,
		"stock_pending":          m.StockPending,
		"stock_reduction_errors": m.StockReductionErrors,
		"stock_rollback_errors":  m.StockRollbackErrors,
		"email_error":            m.EmailError,
		"updated_at":             m.UpdatedAt,
	}
}

func toDomain(m *OrderModel) (*domain.Order, error) {
	o := &domain.Order{
		OrderID:       m.OrderID,
		SessionID:     m.SessionID,
		Total:         m.Total,
		Status:        domain.State(m.Status),
		CustomerEmail: m.CustomerEmail,
		StockPending:  m.StockPending,
		EmailError:    m.EmailError,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(m.Items), &o.Items); err != nil {
		return nil, errors.Wrapf(err, "decode items of order %s", m.OrderID)
	}
	if m.ShippingAddress != "" {
		o.ShippingAddress = &domain.ShippingAddress{}
		if err := json.Unmarshal([]byte(m.ShippingAddress), o.ShippingAddress); err != nil {
			return nil, errors.Wrapf(err, "decode shipping address of order %s", m.OrderID)
		}
	}
	if err := decodeOptional(m.StockReductionErrors, &o.StockReductionErrors); err != nil {
		return nil, err
	}
	if err := decodeOptional(m.StockRollbackErrors, &o.StockRollbackErrors); err != nil {
		return nil, err
	}
	return o, nil
}

func encodeOptional(v interface{}, empty bool) (string, error) {
	if empty {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode order column")
	}
	return string(b), nil
}

func decodeOptional(raw string, dst interface{}) error {
	if raw == "" {
		return nil
	}
	return errors.Wrap(json.Unmarshal([]byte(raw), dst), "decode order column")
}

// internal/service/inventory/application/service.go
package application

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/pkg/apperr"
	"storefront/internal/pkg/logger"
	"storefront/internal/service/inventory/domain"
)

const (
	msgProductNotFound     = "Product not found"
	msgVariantNotAvailable = "Variant not available"
	msgStockAvailable      = "Stock available"
)

// InventoryService 提供库存检查与库存账本的用例，订单服务在进程内直接调用。
type InventoryService struct {
	ledger domain.Ledger
	tracer trace.Tracer
}

func NewInventoryService(ledger domain.Ledger, tracer trace.Tracer) *InventoryService {
	return &InventoryService{ledger: ledger, tracer: tracer}
}

// CheckAvailability 给出非约束性的可售判断。
// 商品或规格不存在不是错误，返回 available=false；只有存储故障才返回 error。
func (s *InventoryService) CheckAvailability(ctx context.Context, req *CheckAvailabilityRequest) (*Availability, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.CheckAvailability")
	defer span.End()

	key := req.Key()
	span.SetAttributes(
		attribute.String("variant.key", key.String()),
		attribute.Int("item.quantity", req.Quantity),
	)

	if err := key.Validate(); err != nil {
		return nil, err
	}
	if req.Quantity <= 0 {
		return nil, apperr.Invalid("quantity", "must be a positive integer")
	}

	stock, err := s.ledger.GetVariantStock(ctx, key)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		availabilityChecks.WithLabelValues("not_found").Inc()
		return &Availability{Available: false, Stock: 0, Message: msgProductNotFound}, nil
	case errors.Is(err, domain.ErrNotFound):
		availabilityChecks.WithLabelValues("not_found").Inc()
		return &Availability{Available: false, Stock: 0, Message: msgVariantNotAvailable}, nil
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock lookup failed")
		availabilityChecks.WithLabelValues("error").Inc()
		return nil, errors.Wrapf(err, "check availability of %s", key)
	}

	available := stock >= req.Quantity
	message := msgStockAvailable
	if !available {
		message = fmt.Sprintf("Only %d units left", stock)
		availabilityChecks.WithLabelValues("short").Inc()
	} else {
		availabilityChecks.WithLabelValues("available").Inc()
	}
	span.SetAttributes(attribute.Int("variant.stock", stock), attribute.Bool("variant.available", available))

	return &Availability{Available: available, Stock: stock, Message: message}, nil
}

// AdjustStock 通过账本原子地调整库存。库存不足和不存在都按原样返回，调用方用 errors.Is 区分。
func (s *InventoryService) AdjustStock(ctx context.Context, req *AdjustStockRequest) (*AdjustStockResponse, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.AdjustStock")
	defer span.End()

	key := req.Key()
	span.SetAttributes(attribute.String("variant.key", key.String()), attribute.Int("stock.delta", req.Delta))

	if err := key.Validate(); err != nil {
		return nil, err
	}
	if req.Delta == 0 {
		return nil, apperr.Invalid("delta", "must be a non-zero integer")
	}

	direction := "increment"
	if req.Delta < 0 {
		direction = "decrement"
	}

	stock, err := s.ledger.AdjustStock(ctx, key, req.Delta)
	if err != nil {
		outcome := "error"
		switch {
		case errors.Is(err, domain.ErrInsufficientStock):
			outcome = "insufficient"
		case errors.Is(err, domain.ErrNotFound):
			outcome = "not_found"
		default:
			span.RecordError(err)
			span.SetStatus(codes.Error, "stock adjustment failed")
		}
		stockAdjustments.WithLabelValues(direction, outcome).Inc()
		logger.Ctx(ctx).Warn().Err(err).
			Str("variant", key.String()).
			Int("delta", req.Delta).
			Msg("stock adjustment rejected")
		return nil, err
	}

	stockAdjustments.WithLabelValues(direction, "ok").Inc()
	logger.Ctx(ctx).Info().
		Str("variant", key.String()).
		Int("delta", req.Delta).
		Int("stock", stock).
		Msg("stock adjusted")

	return &AdjustStockResponse{ProductID: key.ProductID, Size: key.Size, Color: key.Color, Stock: stock}, nil
}

// InitializeInventory 全量替换一个商品的规格集合（后台批量编辑）。
func (s *InventoryService) InitializeInventory(ctx context.Context, req *InitializeInventoryRequest) (*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.InitializeInventory")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", req.ProductID), attribute.Int("variants.count", len(req.Variants)))

	if err := domain.ValidateVariants(req.ProductID, req.ProductName, req.Variants); err != nil {
		return nil, err
	}
	if err := s.ledger.InitializeVariants(ctx, req.ProductID, req.ProductName, req.Variants); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "initialize variants failed")
		return nil, errors.Wrapf(err, "initialize inventory of %s", req.ProductID)
	}

	logger.Ctx(ctx).Info().Str("product", req.ProductID).Int("variants", len(req.Variants)).Msg("inventory initialized")
	return s.ledger.FindInventory(ctx, req.ProductID)
}

func (s *InventoryService) GetInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.GetInventory")
	defer span.End()

	if productID == "" {
		return nil, apperr.Invalid("productId", "must be a non-empty string")
	}
	return s.ledger.FindInventory(ctx, productID)
}

func (s *InventoryService) ListInventories(ctx context.Context) ([]*domain.Inventory, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.ListInventories")
	defer span.End()

	return s.ledger.ListInventories(ctx)
}

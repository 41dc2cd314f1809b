package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"storefront/internal/pkg/redis"
	"storefront/internal/service/inventory/domain"
)

const (
	adjustStockScriptName = "adjust_variant_stock"
	productSetKey         = "inventory:products"
	fieldSeparator        = "\x1f"
)

// 脚本返回码
const (
	codeAdjusted          = 1
	codeInsufficientStock = 0
	codeVariantNotFound   = -1
	codeProductNotFound   = -2
)

// RedisLedger 是 domain.Ledger 的 Redis 实现。
// 每个商品使用同一个 hash tag，保证相关 key 落在同一个槽位。
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger 在创建时加载条件调整库存的 Lua 脚本。
func NewRedisLedger(ctx context.Context, client *redis.Client) (*RedisLedger, error) {
	if err := client.LoadScriptFromContent(ctx, adjustStockScriptName, adjustStockScript); err != nil {
		return nil, errors.Wrap(err, "load adjust stock script")
	}
	return &RedisLedger{client: client}, nil
}

type redisVariantMeta struct {
	Size  string `json:"size"`
	Color string `json:"color"`
	SKU   string `json:"sku,omitempty"`
}

func metaKey(productID string) string  { return fmt.Sprintf("inventory:{%s}:meta", productID) }
func stockKey(productID string) string { return fmt.Sprintf("inventory:{%s}:stock", productID) }
func variantField(size, color string) string {
	return size + fieldSeparator + color
}

func (l *RedisLedger) GetVariantStock(ctx context.Context, key domain.VariantKey) (int, error) {
	rdb := l.client.GetClient()
	stock, err := rdb.HGet(ctx, stockKey(key.ProductID), variantField(key.Size, key.Color)).Int()
	if err == nil {
		return stock, nil
	}
	if !errors.Is(err, goredis.Nil) {
		return 0, errors.Wrap(err, "get variant stock")
	}

	exists, err := rdb.Exists(ctx, metaKey(key.ProductID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "check product")
	}
	if exists == 0 {
		return 0, domain.ErrProductNotFound
	}
	return 0, domain.ErrVariantNotFound
}

func (l *RedisLedger) AdjustStock(ctx context.Context, key domain.VariantKey, delta int) (int, error) {
	keys := []string{metaKey(key.ProductID), stockKey(key.ProductID)}
	result, err := l.client.RunScript(ctx, adjustStockScriptName, keys, variantField(key.Size, key.Color), delta)
	if err != nil {
		return 0, err
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return 0, errors.Errorf("unexpected result from adjust stock script: %v", result)
	}
	code, ok1 := values[0].(int64)
	stock, ok2 := values[1].(int64)
	if !ok1 || !ok2 {
		return 0, errors.Errorf("unexpected result types from adjust stock script: %T, %T", values[0], values[1])
	}

	switch code {
	case codeAdjusted:
		return int(stock), nil
	case codeInsufficientStock:
		return int(stock), domain.ErrInsufficientStock
	case codeVariantNotFound:
		return 0, domain.ErrVariantNotFound
	case codeProductNotFound:
		return 0, domain.ErrProductNotFound
	default:
		return 0, errors.Errorf("unknown result code from adjust stock script: %d", code)
	}
}

// InitializeVariants 在一个 MULTI/EXEC 中替换商品的全部规格。
func (l *RedisLedger) InitializeVariants(ctx context.Context, productID, productName string, variants []domain.Variant) error {
	metas := make([]redisVariantMeta, 0, len(variants))
	stocks := make(map[string]interface{}, len(variants))
	for _, v := range variants {
		metas = append(metas, redisVariantMeta{Size: v.Size, Color: v.Color, SKU: v.SKU})
		stocks[variantField(v.Size, v.Color)] = v.Stock
	}
	encoded, err := json.Marshal(metas)
	if err != nil {
		return errors.Wrap(err, "encode variants")
	}

	rdb := l.client.GetClient()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSetNX(ctx, metaKey(productID), "createdAt", now)
		pipe.HSet(ctx, metaKey(productID),
			"productId", productID,
			"productName", productName,
			"variants", string(encoded),
			"updatedAt", now,
		)
		pipe.Del(ctx, stockKey(productID))
		if len(stocks) > 0 {
			pipe.HSet(ctx, stockKey(productID), stocks)
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "initialize variants")
	}

	if err := rdb.SAdd(ctx, productSetKey, productID).Err(); err != nil {
		return errors.Wrap(err, "index product")
	}
	return nil
}

func (l *RedisLedger) FindInventory(ctx context.Context, productID string) (*domain.Inventory, error) {
	rdb := l.client.GetClient()

	var (
		metaCmd  *goredis.MapStringStringCmd
		stockCmd *goredis.MapStringStringCmd
	)
	_, err := rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		metaCmd = pipe.HGetAll(ctx, metaKey(productID))
		stockCmd = pipe.HGetAll(ctx, stockKey(productID))
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "read inventory")
	}

	meta := metaCmd.Val()
	if len(meta) == 0 {
		return nil, domain.ErrProductNotFound
	}
	return decodeInventory(productID, meta, stockCmd.Val())
}

func (l *RedisLedger) ListInventories(ctx context.Context) ([]*domain.Inventory, error) {
	ids, err := l.client.GetClient().SMembers(ctx, productSetKey).Result()
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	sort.Strings(ids)

	out := make([]*domain.Inventory, 0, len(ids))
	for _, id := range ids {
		inv, err := l.FindInventory(ctx, id)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

func decodeInventory(productID string, meta, stocks map[string]string) (*domain.Inventory, error) {
	var metas []redisVariantMeta
	if raw := meta["variants"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &metas); err != nil {
			return nil, errors.Wrapf(err, "decode variants of %s", productID)
		}
	}

	inv := &domain.Inventory{
		ProductID:   productID,
		ProductName: meta["productName"],
		Variants:    make([]domain.Variant, 0, len(metas)),
	}
	inv.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["createdAt"])
	inv.UpdatedAt, _ = time.Parse(time.RFC3339Nano, meta["updatedAt"])

	for _, m := range metas {
		var stock int
		if raw, ok := stocks[variantField(m.Size, m.Color)]; ok {
			if _, err := fmt.Sscan(raw, &stock); err != nil {
				return nil, errors.Wrapf(err, "decode stock of %s/%s/%s", productID, m.Size, m.Color)
			}
		}
		inv.Variants = append(inv.Variants, domain.Variant{Size: m.Size, Color: m.Color, Stock: stock, SKU: m.SKU})
	}
	return inv, nil
}

var adjustStockScript = `
-- KEYS[1]: 商品元数据 hash，例如 inventory:{P1}:meta
-- KEYS[2]: 规格库存 hash，例如 inventory:{P1}:stock
-- ARGV[1]: 规格字段 (size \x1f color)
-- ARGV[2]: 调整量，负数为扣减

if redis.call('exists', KEYS[1]) == 0 then
    return {-2, 0}
end

local current = redis.call('hget', KEYS[2], ARGV[1])
if not current then
    return {-1, 0}
end

current = tonumber(current)
local delta = tonumber(ARGV[2])

if delta < 0 and current < -delta then
    return {0, current}
end

local updated = redis.call('hincrby', KEYS[2], ARGV[1], delta)
return {1, updated}
`

package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"storefront/internal/pkg/apperr"
	"storefront/internal/service/order/domain"
	"storefront/internal/service/order/domain/port"
)

// StripeConfig 是创建结账会话时服务端决定的参数。
type StripeConfig struct {
	SecretKey        string
	WebhookSecret    string
	Currency         string
	AllowedCountries []string
	SuccessURL       string
	CancelURL        string
	Timeout          time.Duration
	// BackendURL 覆盖 Stripe API 地址，为空时使用官方地址。
	BackendURL string
}

// StripeGateway 实现了 port.PaymentGateway 接口。
type StripeGateway struct {
	api *client.API
	cfg StripeConfig
}

// NewStripeGateway 使用传入的 http.Client 作为 Stripe 后端，调用会带上追踪信息。
func NewStripeGateway(cfg StripeConfig, httpClient *http.Client) *StripeGateway {
	backendCfg := &stripe.BackendConfig{HTTPClient: httpClient}
	if cfg.BackendURL != "" {
		backendCfg.URL = stripe.String(cfg.BackendURL)
	}
	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &StripeGateway{api: client.New(cfg.SecretKey, backends), cfg: cfg}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, items []domain.LineItem) (*port.CheckoutSession, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := g.sessionParams(items)
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: create checkout session")
	}
	return &port.CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

func (g *StripeGateway) sessionParams(items []domain.LineItem) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(g.cfg.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ProductLabel(item)),
				},
				UnitAmount: stripe.Int64(item.Price),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}

	return &stripe.CheckoutSessionParams{
		PaymentMethodTypes:       stripe.StringSlice([]string{"card"}),
		Mode:                     stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:                lineItems,
		SuccessURL:               stripe.String(g.cfg.SuccessURL),
		CancelURL:                stripe.String(g.cfg.CancelURL),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionRequired)),
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice(g.cfg.AllowedCountries),
		},
	}
}

// ProductLabel 是展示在支付页上的商品名。
func ProductLabel(item domain.LineItem) string {
	var b strings.Builder
	b.WriteString(item.Name)
	if item.Size != "" {
		fmt.Fprintf(&b, " - Talla: %s", item.Size)
	}
	if item.Color != "" {
		fmt.Fprintf(&b, " - Color: %s", item.Color)
	}
	return b.String()
}

func (g *StripeGateway) RetrieveSession(ctx context.Context, sessionID string) (*port.SessionDetails, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, errors.Wrapf(err, "stripe: retrieve session %s", sessionID)
	}
	return sessionDetails(sess), nil
}

func sessionDetails(sess *stripe.CheckoutSession) *port.SessionDetails {
	details := &port.SessionDetails{}
	if sess.CustomerDetails != nil {
		details.CustomerEmail = sess.CustomerDetails.Email
	}
	if sd := sess.ShippingDetails; sd != nil && sd.Address != nil {
		details.ShippingAddress = &domain.ShippingAddress{
			Name:       sd.Name,
			Line1:      sd.Address.Line1,
			Line2:      sd.Address.Line2,
			City:       sd.Address.City,
			State:      sd.Address.State,
			PostalCode: sd.Address.PostalCode,
			Country:    sd.Address.Country,
		}
	}
	return details
}

// ParseEvent 校验 Stripe-Signature 并解析事件。
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (*port.PaymentEvent, error) {
	if signature == "" {
		return nil, errors.Wrap(apperr.ErrAuthentication, "missing signature")
	}
	if err := webhook.ValidatePayload(payload, signature, g.cfg.WebhookSecret); err != nil {
		return nil, errors.Wrapf(apperr.ErrAuthentication, "invalid signature: %v", err)
	}
	// 签名已通过，之后的解析失败属于内容问题，不是认证问题
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, apperr.Invalid("payload", "not a stripe event")
	}

	out := &port.PaymentEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type == port.EventCheckoutSessionCompleted && event.Data != nil {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, apperr.Invalid("data.object", "not a checkout session")
		}
		out.SessionID = sess.ID
	}
	return out, nil
}

// Product 是商品目录中对外展示的一项。
type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Images      []string `json:"images,omitempty"`
	Price       int64    `json:"price"`
	Currency    string   `json:"currency"`
}

// ListProducts 返回 Stripe 上所有上架的商品及其默认价格。
func (g *StripeGateway) ListProducts(ctx context.Context) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	params := &stripe.ProductListParams{Active: stripe.Bool(true)}
	params.Context = ctx
	params.AddExpand("data.default_price")

	var products []Product
	iter := g.api.Products.List(params)
	for iter.Next() {
		p := iter.Product()
		item := Product{ID: p.ID, Name: p.Name, Description: p.Description, Images: p.Images}
		if p.DefaultPrice != nil {
			item.Price = p.DefaultPrice.UnitAmount
			item.Currency = string(p.DefaultPrice.Currency)
		}
		products = append(products, item)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "stripe: list products")
	}
	return products, nil
}

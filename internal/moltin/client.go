package moltin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fish-shop/seafood-bot/pkg/config"
	"github.com/fish-shop/seafood-bot/pkg/metrics"
)

// ErrInsufficientStock marks the expected add-to-cart rejection: the backend
// refused the quantity, usually because stock ran out between the product
// page render and the button press. Callers swallow it and re-render.
var ErrInsufficientStock = errors.New("not enough stock to add to cart")

// Product is the catalog view the bot needs.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       string
	Stock       int
	ImageURL    string
}

// CartLine is one product position inside a user's cart.
type CartLine struct {
	ProductID   string
	Name        string
	Description string
	UnitPrice   string
	Quantity    int
	LineTotal   string
}

// Cart aggregates a user's cart contents.
type Cart struct {
	Lines     []CartLine
	TotalCost string
	Summary   string
}

// Shop is the commerce operations surface consumed by the bot handlers.
type Shop interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, productID string) (*Product, error)
	AddToCart(ctx context.Context, userID int64, productID string, quantity int) error
	RemoveFromCart(ctx context.Context, userID int64, productID string) error
	GetCart(ctx context.Context, userID int64) (*Cart, error)
	CreateCustomer(ctx context.Context, email, name string) error
}

// Client talks to the Moltin REST API. Carts are keyed by the Telegram user id.
type Client struct {
	baseURL    string
	tokens     *TokenSource
	httpClient *http.Client
	log        *slog.Logger
}

var _ Shop = (*Client)(nil)

// NewClient builds a commerce client around the provided token source.
func NewClient(cfg config.MoltinConfig, tokens *TokenSource, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

type moltinProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Meta        struct {
		DisplayPrice struct {
			WithTax struct {
				Formatted string `json:"formatted"`
			} `json:"with_tax"`
		} `json:"display_price"`
		Stock struct {
			Level int `json:"level"`
		} `json:"stock"`
	} `json:"meta"`
	Relationships struct {
		MainImage *struct {
			Data *struct {
				ID string `json:"id"`
			} `json:"data"`
		} `json:"main_image"`
	} `json:"relationships"`
}

type moltinFile struct {
	Link struct {
		Href string `json:"href"`
	} `json:"link"`
}

type moltinCartItem struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	Meta        struct {
		DisplayPrice struct {
			WithTax struct {
				Unit struct {
					Formatted string `json:"formatted"`
				} `json:"unit"`
			} `json:"with_tax"`
		} `json:"display_price"`
	} `json:"meta"`
	Value struct {
		Amount int64 `json:"amount"`
	} `json:"value"`
}

// ListProducts returns the full catalog.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	var envelope struct {
		Data []moltinProduct `json:"data"`
	}

	if err := c.get(ctx, "/v2/products", "list_products", &envelope); err != nil {
		return nil, err
	}

	products := make([]Product, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		products = append(products, Product{
			ID:          item.ID,
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Meta.DisplayPrice.WithTax.Formatted,
			Stock:       item.Meta.Stock.Level,
		})
	}

	return products, nil
}

// GetProduct returns one product with its main image URL resolved. It fails
// when the product is unknown or its image relationship is missing.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var envelope struct {
		Data moltinProduct `json:"data"`
	}

	if err := c.get(ctx, "/v2/products/"+productID, "get_product", &envelope); err != nil {
		return nil, err
	}

	item := envelope.Data
	if item.Relationships.MainImage == nil || item.Relationships.MainImage.Data == nil {
		return nil, fmt.Errorf("product %s has no main image relationship", productID)
	}

	var fileEnvelope struct {
		Data moltinFile `json:"data"`
	}

	if err := c.get(ctx, "/v2/files/"+item.Relationships.MainImage.Data.ID, "get_file", &fileEnvelope); err != nil {
		return nil, err
	}

	return &Product{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Price:       item.Meta.DisplayPrice.WithTax.Formatted,
		Stock:       item.Meta.Stock.Level,
		ImageURL:    fileEnvelope.Data.Link.Href,
	}, nil
}

// AddToCart places quantity units of the product into the user's cart.
// A validation rejection from the backend maps to ErrInsufficientStock.
func (c *Client) AddToCart(ctx context.Context, userID int64, productID string, quantity int) error {
	payload := map[string]any{
		"data": map[string]any{
			"id":       productID,
			"type":     "cart_item",
			"quantity": quantity,
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v2/carts/%d/items", userID), "add_to_cart", payload)
	if err != nil {
		return err
	}

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest || status == http.StatusConflict:
		return fmt.Errorf("%w: product %s quantity %d: %s", ErrInsufficientStock, productID, quantity, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("add_to_cart returned %d: %s", status, strings.TrimSpace(string(body)))
	}
}

// RemoveFromCart deletes the product's line from the user's cart.
func (c *Client) RemoveFromCart(ctx context.Context, userID int64, productID string) error {
	status, body, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/v2/carts/%d/items/%s", userID, productID), "remove_from_cart", nil)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("remove_from_cart returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	return nil
}

// GetCart reads the cart contents together with the formatted total and a
// ready-to-send Russian summary.
func (c *Client) GetCart(ctx context.Context, userID int64) (*Cart, error) {
	var envelope struct {
		Data []moltinCartItem `json:"data"`
		Meta struct {
			DisplayPrice struct {
				WithTax struct {
					Formatted string `json:"formatted"`
				} `json:"with_tax"`
			} `json:"display_price"`
		} `json:"meta"`
	}

	if err := c.get(ctx, fmt.Sprintf("/v2/carts/%d/items", userID), "get_cart", &envelope); err != nil {
		return nil, err
	}

	cart := &Cart{
		TotalCost: envelope.Meta.DisplayPrice.WithTax.Formatted,
	}

	var summary strings.Builder
	for _, item := range envelope.Data {
		productID := item.ProductID
		if productID == "" {
			productID = item.ID
		}

		line := CartLine{
			ProductID:   productID,
			Name:        item.Name,
			Description: item.Description,
			UnitPrice:   item.Meta.DisplayPrice.WithTax.Unit.Formatted,
			Quantity:    item.Quantity,
			LineTotal:   fmt.Sprintf("$%.2f", float64(item.Value.Amount)/100),
		}
		cart.Lines = append(cart.Lines, line)

		fmt.Fprintf(&summary, "%s\n%s\n%s per kg\n%dkg in cart for %s\n\n",
			line.Name, line.Description, line.UnitPrice, line.Quantity, line.LineTotal)
	}
	cart.Summary = summary.String()

	return cart, nil
}

// CreateCustomer registers a purchase inquiry record with the submitted email.
func (c *Client) CreateCustomer(ctx context.Context, email, name string) error {
	payload := map[string]any{
		"data": map[string]any{
			"type":  "customer",
			"name":  name,
			"email": email,
		},
	}

	status, body, err := c.do(ctx, http.MethodPost, "/v2/customers", "create_customer", payload)
	if err != nil {
		return err
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("create_customer returned %d: %s", status, strings.TrimSpace(string(body)))
	}

	return nil
}

func (c *Client) get(ctx context.Context, path, operation string, out any) error {
	status, body, err := c.do(ctx, http.MethodGet, path, operation, nil)
	if err != nil {
		return err
	}

	if status != http.StatusOK {
		return fmt.Errorf("%s returned %d: %s", operation, status, strings.TrimSpace(string(body)))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}

	return nil
}

// do performs one authorized request, refreshing the token and retrying a
// single time when the backend reports the cached token as stale.
func (c *Client) do(ctx context.Context, method, path, operation string, payload any) (int, []byte, error) {
	start := time.Now()

	status, body, err := c.doOnce(ctx, method, path, payload)
	if err == nil && status == http.StatusUnauthorized {
		c.tokens.Invalidate()
		status, body, err = c.doOnce(ctx, method, path, payload)
	}

	outcome := "ok"
	if err != nil || status >= 500 {
		outcome = "error"
	}
	metrics.RecordMoltinRequest(operation, outcome, time.Since(start))

	if err != nil {
		c.log.Error("moltin request failed", "operation", operation, "error", err)
		return 0, nil, err
	}

	return status, body, nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, nil, err
	}

	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("encode request payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"suporte-lojinha/internal/entities"
)

// CubboClient talks to the fulfillment API through its auth proxy. A POST to
// the proxy root yields a short-lived bearer token; order lookups go through
// GET /api/orders with store_id always present.
type CubboClient struct {
	proxyURL string
	storeID  string
	http     *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewCubboClient(proxyURL, storeID string) *CubboClient {
	return &CubboClient{
		proxyURL: strings.TrimRight(proxyURL, "/"),
		storeID:  storeID,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *CubboClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.proxyURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("auth proxy request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("auth proxy read: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("auth proxy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return "", fmt.Errorf("auth proxy returned an empty 200 response")
	}

	var data struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
		Error       string `json:"error"`
		Message     string `json:"message"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("auth proxy decode: %w", err)
	}

	// The API answers with 'token', older proxy versions with 'access_token'.
	tok := data.AccessToken
	if tok == "" {
		tok = data.Token
	}
	if tok == "" {
		if data.Error != "" || data.Message != "" {
			return "", fmt.Errorf("auth proxy error: %s%s", data.Error, data.Message)
		}
		return "", fmt.Errorf("access token missing from proxy response")
	}

	c.token = tok
	c.tokenExpiry = time.Now().Add(10 * time.Minute)
	return tok, nil
}

// ordersEnvelope covers the response shapes the API is known to produce: a
// bare array, or an object wrapping it under orders/data/results.
func decodeOrders(body []byte) ([]entities.Order, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "[") {
		var orders []entities.Order
		if err := json.Unmarshal(body, &orders); err != nil {
			return nil, err
		}
		return orders, nil
	}
	var envelope struct {
		Orders  []entities.Order `json:"orders"`
		Data    []entities.Order `json:"data"`
		Results []entities.Order `json:"results"`
		Order   *entities.Order  `json:"order"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	switch {
	case len(envelope.Orders) > 0:
		return envelope.Orders, nil
	case len(envelope.Data) > 0:
		return envelope.Data, nil
	case len(envelope.Results) > 0:
		return envelope.Results, nil
	case envelope.Order != nil:
		return []entities.Order{*envelope.Order}, nil
	}
	return nil, nil
}

func (c *CubboClient) getOrders(ctx context.Context, params url.Values) ([]entities.Order, int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, 0, err
	}

	requestURL := c.proxyURL + "/api/orders?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("orders request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("orders read: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, fmt.Errorf("orders API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	orders, err := decodeOrders(body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("orders decode: %w", err)
	}
	return orders, resp.StatusCode, nil
}

var nonDigits = regexp.MustCompile(`\D`)

// FindOrdersByCustomer lists a customer's orders by shipping email or phone.
// Failures degrade to an empty list; callers phrase the outcome.
func (c *CubboClient) FindOrdersByCustomer(ctx context.Context, email, phone string) ([]entities.Order, error) {
	if c.storeID == "" {
		return nil, fmt.Errorf("cubbo store_id not configured")
	}

	params := url.Values{}
	params.Set("store_id", c.storeID)
	switch {
	case email != "":
		params.Set("shipping_email", email)
	case phone != "":
		params.Set("customer_phone", nonDigits.ReplaceAllString(phone, ""))
	default:
		return nil, nil
	}
	params.Set("per_page", "100")
	params.Set("page", "1")
	params.Set("sort", "desc")
	params.Set("sort_by", "created_at")

	orders, _, err := c.getOrders(ctx, params)
	if err != nil {
		log.Printf("[cubbo] find orders failed: %v", err)
		return nil, err
	}
	return orders, nil
}

// TrackOrder resolves an order code or an email to tracking details. An order
// code with a customer email attached is validated against order ownership
// before anything is revealed.
func (c *CubboClient) TrackOrder(ctx context.Context, codeOrEmail, customerEmail string) (entities.TrackingInfo, error) {
	cleaned := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(codeOrEmail), "#"))

	isEmail := strings.Contains(cleaned, "@")
	searchEmail := customerEmail
	if isEmail {
		searchEmail = cleaned
	}

	// Email search path: list everything the customer has.
	if isEmail || cleaned == "" {
		if searchEmail == "" {
			return entities.TrackingInfo{
				Status:  entities.TrackingError,
				Details: "É necessário informar o código do pedido ou o email.",
			}, nil
		}
		orders, err := c.FindOrdersByCustomer(ctx, searchEmail, "")
		if err != nil {
			return entities.TrackingInfo{
				Status:  entities.TrackingError,
				Details: fmt.Sprintf("Erro ao buscar pedidos: %v", err),
			}, nil
		}
		if len(orders) == 0 {
			return entities.TrackingInfo{
				Status:  entities.TrackingNotFound,
				Details: fmt.Sprintf("Nenhum pedido encontrado para o email %s. Verifique se o email está correto.", searchEmail),
			}, nil
		}
		summaries := make([]string, 0, len(orders))
		for _, order := range orders {
			summaries = append(summaries, formatOrderSummary(order))
		}
		return entities.TrackingInfo{
			Status:  entities.TrackingFound,
			Details: fmt.Sprintf("Encontrei %d pedido(s) para %s:\n\n%s", len(orders), searchEmail, strings.Join(summaries, "\n\n")),
			Orders:  orders,
		}, nil
	}

	// Order code path.
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	params := url.Values{}
	params.Set("store_id", c.storeID)
	params.Set("order_number", cleaned)

	orders, status, err := c.getOrders(ctx, params)
	if err != nil {
		return entities.TrackingInfo{
			Status:  entities.TrackingError,
			Details: fmt.Sprintf("Não foi possível consultar o pedido agora. Detalhe: %v", err),
		}, nil
	}
	if status == http.StatusNotFound || len(orders) == 0 {
		return entities.TrackingInfo{
			Status:  entities.TrackingNotFound,
			Details: fmt.Sprintf("O pedido \"%s\" não foi encontrado. Verifique se o código do pedido está correto.", cleaned),
		}, nil
	}

	order := orders[0]

	if searchEmail != "" {
		if !c.orderBelongsTo(ctx, order, cleaned, searchEmail) {
			return entities.TrackingInfo{
				Status:  entities.TrackingUnauthorized,
				Details: fmt.Sprintf("O pedido %s não está associado ao email %s. Verifique se o código do pedido e o email estão corretos.", cleaned, searchEmail),
			}, nil
		}
	}

	return entities.TrackingInfo{
		Status:  order.Status,
		Details: FormatOrderDetails(order),
		Order:   &order,
	}, nil
}

// orderBelongsTo checks ownership: direct email match when the record carries
// one, otherwise by membership in the customer's own order list.
func (c *CubboClient) orderBelongsTo(ctx context.Context, order entities.Order, code, email string) bool {
	orderEmail := strings.ToLower(strings.TrimSpace(order.CustomerEmail))
	if orderEmail == "" && order.Shipping != nil {
		orderEmail = strings.ToLower(strings.TrimSpace(order.Shipping.Email))
	}
	provided := strings.ToLower(strings.TrimSpace(email))

	if orderEmail != "" {
		return orderEmail == provided
	}

	customerOrders, err := c.FindOrdersByCustomer(ctx, email, "")
	if err != nil {
		return false
	}
	for _, o := range customerOrders {
		if (order.ID != "" && o.ID == order.ID) || o.OrderNumber == order.OrderNumber || o.OrderNumber == code {
			return true
		}
	}
	return false
}

// formatOrderSummary is the compact one-order block used in multi-order
// email lookups.
func formatOrderSummary(order entities.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Pedido %s - Status: %s - Data: %s",
		order.OrderNumber, TranslateOrderStatus(order.Status), formatWireDate(order.CreatedAt, false))

	if addr := order.Address; addr != nil {
		var parts []string
		if addr.Street != "" {
			parts = append(parts, addr.Street)
			if addr.StreetNumber != "" {
				parts = append(parts, addr.StreetNumber)
			}
		}
		if len(parts) > 0 {
			fmt.Fprintf(&b, "\n🏠 Endereço: %s", strings.Join(parts, ", "))
			if addr.Neighborhood != "" {
				fmt.Fprintf(&b, ", %s", addr.Neighborhood)
			}
			var cityState []string
			if addr.City != "" {
				cityState = append(cityState, addr.City)
			}
			if addr.State != "" {
				cityState = append(cityState, addr.State)
			}
			if len(cityState) > 0 {
				fmt.Fprintf(&b, " - %s", strings.Join(cityState, " - "))
			}
			if addr.ZipCode != "" {
				fmt.Fprintf(&b, " - CEP: %s", addr.ZipCode)
			}
		}
	}

	if ship := order.Shipping; ship != nil {
		if ship.TrackingURL != "" {
			fmt.Fprintf(&b, "\n📍 Rastreio: %s", ship.TrackingURL)
		} else if ship.TrackingNumber != "" {
			fmt.Fprintf(&b, "\n📍 Código de rastreio: %s", ship.TrackingNumber)
		}
		if ship.Courier != "" {
			fmt.Fprintf(&b, "\n🚚 Transportadora: %s", ship.Courier)
		}
	}
	return b.String()
}

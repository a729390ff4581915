package entities

// Order is the normalized shape of an order returned by the fulfillment API.
// Field names follow the wire format so orders can be embedded directly in
// order-list component payloads.
type Order struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"order_number"`
	Status        string        `json:"status"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	CreatedAt     string        `json:"created_at,omitempty"`
	UpdatedAt     string        `json:"updated_at,omitempty"`
	TotalAmount   float64       `json:"total_amount,omitempty"`
	Currency      string        `json:"currency,omitempty"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	ItemsSummary  []string      `json:"items_summary,omitempty"`
	Items         []OrderItem   `json:"items,omitempty"`
	Shipping      *ShippingInfo `json:"shipping_information,omitempty"`
	Address       *Address      `json:"shipping_address,omitempty"`
}

type OrderItem struct {
	SKU      string  `json:"sku"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

type ShippingInfo struct {
	TrackingURL    string `json:"tracking_url,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Courier        string `json:"courier,omitempty"`
	Email          string `json:"email,omitempty"`
	EstimatedTime  string `json:"estimated_time_arrival,omitempty"`
}

type Address struct {
	Street       string `json:"street,omitempty"`
	StreetNumber string `json:"street_number,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	ZipCode      string `json:"zip_code,omitempty"`
	Country      string `json:"country,omitempty"`
	Complement   string `json:"complement,omitempty"`
}

// Tracking outcome statuses, mirroring the fulfillment API vocabulary used in
// user-facing flow decisions.
const (
	TrackingFound        = "Encontrado"
	TrackingNotFound     = "Não encontrado"
	TrackingUnauthorized = "Não autorizado"
	TrackingError        = "Erro"
)

// TrackingInfo is the result of a trackOrder gateway call. Status is one of
// the Tracking* constants (or a raw order status when a single order was
// found); Details is the PT-BR text appended to the transcript.
type TrackingInfo struct {
	Status  string
	Details string
	Order   *Order
	Orders  []Order
}

// Found reports whether tracking located at least one order.
func (t TrackingInfo) Found() bool {
	return t.Order != nil || len(t.Orders) > 0
}

package infrastructure

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"suporte-lojinha/internal/entities"
)

// Order code patterns as they show up in customer text:
// R-prefixed codes (R123456, R595531189-dup), LP codes (LP-12345, LP12345)
// and codes introduced by "pedido"/"order".
var orderNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bR\d+[-\w]*`),
	regexp.MustCompile(`(?i)\bLP[-_]?\d+`),
	regexp.MustCompile(`(?i)pedido\s+([R\d]+[-\w]*)`),
	regexp.MustCompile(`(?i)order\s+([R\d]+[-\w]*)`),
}

var orderNumberPrefix = regexp.MustCompile(`(?i)^(pedido|order)\s+`)

// ExtractOrderNumbers pulls order codes out of free text, deduplicated in
// first-seen order.
func ExtractOrderNumbers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, pattern := range orderNumberPatterns {
		for _, match := range pattern.FindAllString(text, -1) {
			cleaned := strings.TrimSpace(orderNumberPrefix.ReplaceAllString(match, ""))
			if cleaned != "" && !seen[cleaned] {
				seen[cleaned] = true
				out = append(out, cleaned)
			}
		}
	}
	return out
}

var orderStatusPT = map[string]string{
	"pending":    "Pendente",
	"processing": "Processando",
	"shipped":    "Enviado",
	"delivered":  "Entregue",
	"cancelled":  "Cancelado",
	"refunded":   "Reembolsado",
}

// TranslateOrderStatus maps a fulfillment API status to its PT-BR label.
// Unknown statuses pass through unchanged.
func TranslateOrderStatus(status string) string {
	if pt, ok := orderStatusPT[strings.ToLower(status)]; ok {
		return pt
	}
	return status
}

// FormatOrderDetails renders the full PT-BR order summary appended to the
// transcript after a successful tracking lookup.
func FormatOrderDetails(order entities.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 Pedido %s\n", order.OrderNumber)
	fmt.Fprintf(&b, "Status: %s\n", TranslateOrderStatus(order.Status))
	fmt.Fprintf(&b, "Data do pedido: %s\n", formatWireDate(order.CreatedAt, false))

	if order.UpdatedAt != "" {
		if d := formatWireDate(order.UpdatedAt, true); d != "Data não disponível" {
			fmt.Fprintf(&b, "Última atualização: %s\n", d)
		}
	}

	fmt.Fprintf(&b, "\n🛍️ Produtos:\n%s\n", formatItems(order))

	if order.TotalAmount > 0 {
		symbol := order.Currency
		if symbol == "" || symbol == "BRL" {
			symbol = "R$"
		}
		fmt.Fprintf(&b, "\n💰 Valor total: %s %.2f\n", symbol, order.TotalAmount)
	}
	if order.PaymentMethod != "" {
		fmt.Fprintf(&b, "💳 Pagamento: %s\n", order.PaymentMethod)
	}

	if addr := order.Address; addr != nil {
		b.WriteString("\n🏠 Endereço de Entrega:\n")
		var streetParts []string
		if addr.Street != "" {
			streetParts = append(streetParts, addr.Street)
			if addr.StreetNumber != "" {
				streetParts = append(streetParts, addr.StreetNumber)
			}
		}
		if len(streetParts) > 0 {
			b.WriteString(strings.Join(streetParts, ", ") + "\n")
		}
		if addr.Neighborhood != "" {
			b.WriteString(addr.Neighborhood + "\n")
		}
		var cityState []string
		if addr.City != "" {
			cityState = append(cityState, addr.City)
		}
		if addr.State != "" {
			cityState = append(cityState, addr.State)
		}
		if len(cityState) > 0 {
			b.WriteString(strings.Join(cityState, " - ") + "\n")
		}
		if addr.ZipCode != "" {
			fmt.Fprintf(&b, "CEP: %s\n", addr.ZipCode)
		}
		if addr.Country != "" {
			b.WriteString(addr.Country + "\n")
		}
		if addr.Complement != "" {
			fmt.Fprintf(&b, "Complemento: %s\n", addr.Complement)
		}
	}

	if ship := order.Shipping; ship != nil {
		if ship.TrackingURL != "" {
			fmt.Fprintf(&b, "\n📍 Rastreio: %s\n", ship.TrackingURL)
		} else if ship.TrackingNumber != "" {
			fmt.Fprintf(&b, "\n📍 Código de rastreio: %s\n", ship.TrackingNumber)
		}
		if ship.Courier != "" {
			fmt.Fprintf(&b, "🚚 Transportadora: %s\n", ship.Courier)
		}
		if ship.EstimatedTime != "" {
			fmt.Fprintf(&b, "⏱️ Tempo estimado de entrega: %s\n", ship.EstimatedTime)
		}
	}

	return b.String()
}

func formatItems(order entities.Order) string {
	if len(order.Items) > 0 {
		parts := make([]string, 0, len(order.Items))
		for _, item := range order.Items {
			name := item.Name
			if name == "" {
				name = item.SKU
			}
			s := name
			if item.Quantity > 1 {
				s += fmt.Sprintf(" (%dx)", item.Quantity)
			}
			if item.Price > 0 {
				s += fmt.Sprintf(" - R$ %.2f", item.Price)
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", ")
	}
	if len(order.ItemsSummary) > 0 {
		return strings.Join(order.ItemsSummary, ", ")
	}
	return "Produtos não especificados"
}

// FormatCompactDate renders a wire timestamp as dd/mm/yyyy for one-line
// order summaries.
func FormatCompactDate(raw string) string {
	return formatWireDate(raw, false)
}

// formatWireDate renders an RFC3339 (or date-only) wire timestamp as
// dd/mm/yyyy, optionally with hh:mm.
func formatWireDate(raw string, withTime bool) string {
	if raw == "" {
		return "Data não disponível"
	}
	var t time.Time
	var err error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err = time.Parse(layout, raw); err == nil {
			break
		}
	}
	if err != nil {
		return "Data não disponível"
	}
	if withTime {
		return t.Format("02/01/2006, 15:04")
	}
	return t.Format("02/01/2006")
}

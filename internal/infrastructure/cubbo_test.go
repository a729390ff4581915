package infrastructure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"suporte-lojinha/internal/entities"
)

func newCubboTestServer(t *testing.T, orders map[string][]entities.Order, byEmail map[string][]entities.Order) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.URL.Path == "/" {
			json.NewEncoder(w).Encode(map[string]string{"token": "test-token"})
			return
		}
		if r.URL.Path != "/api/orders" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		q := r.URL.Query()
		if q.Get("store_id") == "" {
			t.Error("store_id missing from query")
		}
		if num := q.Get("order_number"); num != "" {
			found, ok := orders[num]
			if !ok {
				http.NotFound(w, r)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"orders": found})
			return
		}
		if email := q.Get("shipping_email"); email != "" {
			json.NewEncoder(w).Encode(map[string]any{"orders": byEmail[email]})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"orders": []entities.Order{}})
	}))
}

func TestTrackOrderByCode(t *testing.T) {
	srv := newCubboTestServer(t, map[string][]entities.Order{
		"R123": {{ID: "1", OrderNumber: "R123", Status: "shipped", CustomerEmail: "ana@example.com"}},
	}, nil)
	defer srv.Close()

	client := NewCubboClient(srv.URL, "store-1")

	info, err := client.TrackOrder(context.Background(), "#R123", "ana@example.com")
	if err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	if info.Status != "shipped" {
		t.Errorf("status = %q, want shipped", info.Status)
	}
	if info.Order == nil || info.Order.OrderNumber != "R123" {
		t.Errorf("order not returned: %+v", info.Order)
	}
	if !strings.Contains(info.Details, "📦 Pedido R123") {
		t.Errorf("details missing order header:\n%s", info.Details)
	}
}

func TestTrackOrderWrongEmail(t *testing.T) {
	srv := newCubboTestServer(t, map[string][]entities.Order{
		"R123": {{ID: "1", OrderNumber: "R123", Status: "shipped", CustomerEmail: "ana@example.com"}},
	}, nil)
	defer srv.Close()

	client := NewCubboClient(srv.URL, "store-1")

	info, err := client.TrackOrder(context.Background(), "R123", "intruso@example.com")
	if err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	if info.Status != entities.TrackingUnauthorized {
		t.Errorf("status = %q, want %q", info.Status, entities.TrackingUnauthorized)
	}
	if info.Order != nil {
		t.Error("unauthorized lookup must not leak the order")
	}
}

func TestTrackOrderNotFound(t *testing.T) {
	srv := newCubboTestServer(t, nil, nil)
	defer srv.Close()

	client := NewCubboClient(srv.URL, "store-1")

	info, err := client.TrackOrder(context.Background(), "R999", "")
	if err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	if info.Status != entities.TrackingNotFound {
		t.Errorf("status = %q, want %q", info.Status, entities.TrackingNotFound)
	}
}

func TestTrackOrderByEmail(t *testing.T) {
	srv := newCubboTestServer(t, nil, map[string][]entities.Order{
		"ana@example.com": {
			{OrderNumber: "R1", Status: "delivered"},
			{OrderNumber: "R2", Status: "pending"},
		},
	})
	defer srv.Close()

	client := NewCubboClient(srv.URL, "store-1")

	info, err := client.TrackOrder(context.Background(), "ana@example.com", "")
	if err != nil {
		t.Fatalf("TrackOrder: %v", err)
	}
	if info.Status != entities.TrackingFound {
		t.Errorf("status = %q, want %q", info.Status, entities.TrackingFound)
	}
	if len(info.Orders) != 2 {
		t.Fatalf("orders = %d, want 2", len(info.Orders))
	}
	if !strings.Contains(info.Details, "Encontrei 2 pedido(s) para ana@example.com") {
		t.Errorf("details missing summary line:\n%s", info.Details)
	}
}

func TestFindOrdersByCustomerPhoneSanitized(t *testing.T) {
	var gotPhone string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "tk"})
			return
		}
		gotPhone = r.URL.Query().Get("customer_phone")
		json.NewEncoder(w).Encode(map[string]any{"orders": []entities.Order{}})
	}))
	defer srv.Close()

	client := NewCubboClient(srv.URL, "store-1")
	if _, err := client.FindOrdersByCustomer(context.Background(), "", "+55 (11) 98888-7777"); err != nil {
		t.Fatalf("FindOrdersByCustomer: %v", err)
	}
	if gotPhone != "5511988887777" {
		t.Errorf("customer_phone = %q, want digits only", gotPhone)
	}
}

package entities

// ActionRequest is a structured action emitted by the intent resolver. It is
// a closed sum over the six known function names plus UnknownAction for
// anything the resolver invents; the dispatcher switches exhaustively on the
// concrete type.
type ActionRequest interface {
	ActionName() string
}

type FindCustomerOrders struct{}

type TrackOrder struct {
	OrderID       string
	CustomerEmail string
}

type InitiateExchange struct {
	OrderID string
}

type OpenSupportTicket struct {
	Subject     string
	OrderNumber string
}

type SearchFAQ struct {
	Query string
}

type EscalateToHuman struct{}

type UnknownAction struct {
	Name string
}

func (FindCustomerOrders) ActionName() string { return "findCustomerOrders" }
func (TrackOrder) ActionName() string         { return "trackOrder" }
func (InitiateExchange) ActionName() string   { return "initiateExchange" }
func (OpenSupportTicket) ActionName() string  { return "openSupportTicket" }
func (SearchFAQ) ActionName() string          { return "searchFAQ" }
func (EscalateToHuman) ActionName() string    { return "escalateToHuman" }
func (u UnknownAction) ActionName() string    { return u.Name }

// RawFunctionCall is the wire form of a resolver function call.
type RawFunctionCall struct {
	Name string            `json:"name"`
	Args map[string]string `json:"args"`
}

// Decode maps a wire function call onto its typed variant. Missing args
// decode to zero values; the per-action handlers own optionality.
func (r RawFunctionCall) Decode() ActionRequest {
	switch r.Name {
	case "findCustomerOrders":
		return FindCustomerOrders{}
	case "trackOrder":
		return TrackOrder{OrderID: r.Args["orderId"], CustomerEmail: r.Args["customerEmail"]}
	case "initiateExchange":
		return InitiateExchange{OrderID: r.Args["orderId"]}
	case "openSupportTicket":
		return OpenSupportTicket{Subject: r.Args["subject"], OrderNumber: r.Args["orderNumber"]}
	case "searchFAQ":
		return SearchFAQ{Query: r.Args["query"]}
	case "escalateToHuman":
		return EscalateToHuman{}
	default:
		return UnknownAction{Name: r.Name}
	}
}

// ResolverResponse is what one intent-resolver invocation yields: free text,
// structured action requests, or both.
type ResolverResponse struct {
	Text    string
	Actions []ActionRequest
}

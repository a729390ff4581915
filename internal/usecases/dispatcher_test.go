package usecases

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/interfaces"
)

type fakeResolver struct {
	responses []*entities.ResolverResponse
	err       error
	calls     int
	lastTurn  string
}

func (f *fakeResolver) Resolve(_ context.Context, _ []interfaces.TranscriptTurn, turn string) (*entities.ResolverResponse, error) {
	f.lastTurn = turn
	if f.err != nil {
		return nil, f.err
	}
	resp := f.responses[f.calls%len(f.responses)]
	f.calls++
	return resp, nil
}

type fakeGateway struct {
	orders   []entities.Order
	tracking entities.TrackingInfo
	err      error
}

func (f *fakeGateway) FindOrdersByCustomer(context.Context, string, string) ([]entities.Order, error) {
	return f.orders, f.err
}

func (f *fakeGateway) TrackOrder(context.Context, string, string) (entities.TrackingInfo, error) {
	return f.tracking, f.err
}

type fakeTickets struct {
	created []entities.Ticket
}

func (f *fakeTickets) CreateTicket(_ context.Context, t entities.Ticket) (string, error) {
	f.created = append(f.created, t)
	return "abc123def456", nil
}

func (f *fakeTickets) TicketsByUser(context.Context, string, string) ([]entities.Ticket, error) {
	return nil, nil
}

type fakeFAQ struct {
	result entities.FAQResult
	err    error
}

func (f *fakeFAQ) SearchSemantic(context.Context, string, string) (entities.FAQResult, error) {
	return f.result, f.err
}

func (f *fakeFAQ) SearchKeyword(context.Context, string) (string, error) {
	return "resposta do FAQ simples", nil
}

type savedConversation struct {
	UserID       string
	Messages     []entities.ConversationMessage
	OrderNumbers []string
	Resolved     bool
	Attempts     int
	Feedback     *entities.Feedback
}

type fakeConvStore struct {
	mu      sync.Mutex
	nextID  int
	rows    map[string]*savedConversation
	recent  []entities.Conversation
	updates int
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{rows: make(map[string]*savedConversation)}
}

func (f *fakeConvStore) Create(_ context.Context, userID, _, _ string, messages []entities.ConversationMessage, orderNumbers []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := fmt.Sprintf("conv-%d", f.nextID)
	f.rows[id] = &savedConversation{UserID: userID, Messages: messages, OrderNumbers: orderNumbers}
	return id, nil
}

func (f *fakeConvStore) Update(_ context.Context, id string, upd entities.ConversationUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("conversation %s not found", id)
	}
	row.Messages = upd.Messages
	row.OrderNumbers = upd.OrderNumbers
	row.Resolved = upd.Resolved
	row.Attempts = upd.Attempts
	f.updates++
	return nil
}

func (f *fakeConvStore) GetByID(context.Context, string) (*entities.Conversation, error) {
	return nil, nil
}

func (f *fakeConvStore) GetRecentByUser(context.Context, string, int) ([]entities.Conversation, error) {
	return f.recent, nil
}

func (f *fakeConvStore) AttachFeedback(_ context.Context, id string, rating int, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("conversation %s not found", id)
	}
	row.Feedback = &entities.Feedback{Rating: rating, Comment: comment}
	return nil
}

func (f *fakeConvStore) get(id string) *savedConversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeCompanies struct {
	companyID string
	greeting  string
}

func (f *fakeCompanies) CompanyFromEmail(context.Context, string) (string, error) {
	if f.companyID == "" {
		return "general", nil
	}
	return f.companyID, nil
}

func (f *fakeCompanies) GreetingFor(context.Context, string) (string, error) {
	return f.greeting, nil
}

type fakeNotifier struct {
	tickets     []entities.Ticket
	escalations int
}

func (f *fakeNotifier) NotifyTicket(t entities.Ticket)  { f.tickets = append(f.tickets, t) }
func (f *fakeNotifier) NotifyEscalation(string, string) { f.escalations++ }

type testEnv struct {
	dispatcher *Dispatcher
	resolver   *fakeResolver
	gateway    *fakeGateway
	tickets    *fakeTickets
	faq        *fakeFAQ
	convs      *fakeConvStore
	notifier   *fakeNotifier
	saver      *ConversationSaver
}

func newTestEnv(t *testing.T, resolver *fakeResolver) *testEnv {
	t.Helper()
	env := &testEnv{
		resolver: resolver,
		gateway:  &fakeGateway{},
		tickets:  &fakeTickets{},
		faq:      &fakeFAQ{},
		convs:    newFakeConvStore(),
		notifier: &fakeNotifier{},
	}
	env.saver = NewConversationSaver(env.convs)
	t.Cleanup(env.saver.Close)
	env.dispatcher = NewDispatcher(env.resolver, env.gateway, env.tickets, env.faq,
		env.convs, &fakeCompanies{}, env.notifier, env.saver)
	return env
}

func newSession(email string) *ChatSession {
	return &ChatSession{ID: "sess-1", CompanyID: "general", User: entities.User{Name: "Ana", Email: email}}
}

func textOnly(text string) *entities.ResolverResponse {
	return &entities.ResolverResponse{Text: text}
}

func withActions(actions ...entities.ActionRequest) *entities.ResolverResponse {
	return &entities.ResolverResponse{Actions: actions}
}

func lastText(msgs []entities.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if !msgs[i].IsComponent() {
			return msgs[i].Text
		}
	}
	return ""
}

func hasComponent(msgs []entities.Message, kind entities.ComponentKind) bool {
	for _, m := range msgs {
		if m.IsComponent() && m.Component.Kind == kind {
			return true
		}
	}
	return false
}

func TestTextOnlyTurnIncrementsAttempts(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("Pode me dar mais detalhes?")}})
	sess := newSession("ana@example.com")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "oi")
	if sess.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", sess.Attempts)
	}
	if lastText(msgs) != "Pode me dar mais detalhes?" {
		t.Errorf("bot text not appended: %q", lastText(msgs))
	}
}

func TestResolverFailureDegradesToApology(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{err: fmt.Errorf("boom")})
	sess := newSession("")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "oi")
	if got := lastText(msgs); got != "Desculpe, ocorreu um erro. Por favor, tente novamente." {
		t.Errorf("apology missing, got %q", got)
	}
	if sess.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", sess.Attempts)
	}
}

func TestEscalationOfferAfterThreeAttempts(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("Não entendi.")}})
	sess := newSession("ana@example.com")

	var msgs []entities.Message
	for i := 0; i < 3; i++ {
		msgs = env.dispatcher.ProcessTurn(context.Background(), sess, "não funciona")
	}

	if sess.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", sess.Attempts)
	}
	if !hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("escalation offer component missing at 3 attempts")
	}
	found := false
	for _, m := range msgs {
		if m.Text == EscalationOfferText {
			found = true
		}
	}
	if !found {
		t.Error("escalation offer text missing")
	}
}

func TestEscalationOfferFiresOnceUntilReset(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		textOnly("Não entendi."),
		textOnly("Não entendi."),
		textOnly("Não entendi."),
		textOnly("Não entendi."),
		withActions(entities.FindCustomerOrders{}),
		textOnly("Não entendi."),
		textOnly("Não entendi."),
		textOnly("Não entendi."),
	}})
	env.gateway.orders = []entities.Order{{OrderNumber: "R1", Status: "shipped", CreatedAt: "2026-08-01T00:00:00Z"}}
	sess := newSession("ana@example.com")

	turn := func() []entities.Message {
		return env.dispatcher.ProcessTurn(context.Background(), sess, "não funciona")
	}

	turn()
	turn()
	if msgs := turn(); !hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Fatal("offer missing at 3 attempts")
	}
	if !sess.EscalationOffered {
		t.Fatal("offer latch not set")
	}
	if msgs := turn(); hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("offer re-fired at 4 attempts without an intervening reset")
	}

	// Orders found: counter resets and the offer re-arms.
	turn()
	if sess.Attempts != 0 || sess.EscalationOffered {
		t.Fatalf("reset did not re-arm the offer: attempts=%d latch=%v", sess.Attempts, sess.EscalationOffered)
	}
	turn()
	turn()
	if msgs := turn(); !hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("offer should fire again once the counter climbs back to the threshold")
	}
}

func TestNoEscalationOfferBeforeThreshold(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("Hmm.")}})
	sess := newSession("")

	var msgs []entities.Message
	for i := 0; i < 2; i++ {
		msgs = env.dispatcher.ProcessTurn(context.Background(), sess, "oi")
	}
	if hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("offer must not appear below 3 attempts")
	}
}

func TestFindOrdersResetsAttempts(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{withActions(entities.FindCustomerOrders{})}})
	env.gateway.orders = []entities.Order{
		{OrderNumber: "R1", Status: "shipped", CreatedAt: "2026-08-01T00:00:00Z"},
		{OrderNumber: "R2", Status: "pending", CreatedAt: "2026-08-02T00:00:00Z"},
	}
	sess := newSession("ana@example.com")
	sess.Attempts = 2

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "quero ver meus pedidos")

	if sess.Attempts != 0 {
		t.Errorf("attempts = %d, want 0 after orders found", sess.Attempts)
	}
	if !hasComponent(msgs, entities.ComponentOrderList) {
		t.Error("order list component missing")
	}
	joined := ""
	for _, m := range msgs {
		joined += m.Text + "\n"
	}
	if !strings.Contains(joined, "Encontrei 2 pedidos seus:") {
		t.Errorf("plural count line missing:\n%s", joined)
	}
	if !strings.Contains(joined, "• Pedido R1 - Enviado (01/08/2026)") {
		t.Errorf("summary line missing:\n%s", joined)
	}
	if len(sess.MentionedOrders) != 2 {
		t.Errorf("mentioned orders = %v", sess.MentionedOrders)
	}
}

func TestFindOrdersEmptyIncrementsAttempts(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{withActions(entities.FindCustomerOrders{})}})
	sess := newSession("ana@example.com")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "meus pedidos")
	if sess.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", sess.Attempts)
	}
	if !strings.Contains(lastText(msgs), "Não encontrei nenhum pedido") {
		t.Errorf("empty-result message missing: %q", lastText(msgs))
	}
}

func TestTrackOrderFound(t *testing.T) {
	order := entities.Order{OrderNumber: "R123", Status: "shipped"}
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.TrackOrder{OrderID: "R123"}),
	}})
	env.gateway.tracking = entities.TrackingInfo{Status: "shipped", Details: "📦 Pedido R123\nStatus: Enviado\n", Order: &order}
	sess := newSession("ana@example.com")
	sess.Attempts = 2

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "cadê o R123?")

	if sess.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", sess.Attempts)
	}
	if !hasComponent(msgs, entities.ComponentOrderList) {
		t.Error("order list component missing")
	}
	if lastText(msgs) != env.gateway.tracking.Details {
		t.Errorf("details not appended: %q", lastText(msgs))
	}
}

func TestTrackOrderUnknownVisitorAsksForEmail(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.TrackOrder{OrderID: "R777"}),
	}})
	env.gateway.tracking = entities.TrackingInfo{Status: entities.TrackingNotFound}
	sess := newSession("") // no email known

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "pedido R777")

	if sess.PendingOrderSearch != "R777" {
		t.Errorf("PendingOrderSearch = %q, want R777", sess.PendingOrderSearch)
	}
	if !hasComponent(msgs, entities.ComponentEmailRequest) {
		t.Error("email request component missing")
	}
	if sess.Attempts != 0 {
		t.Errorf("asking for email should not count as a failed attempt, attempts = %d", sess.Attempts)
	}
}

func TestHandleEmailProvidedResumesSearch(t *testing.T) {
	order := entities.Order{OrderNumber: "R777", Status: "delivered"}
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	env.gateway.tracking = entities.TrackingInfo{Status: "delivered", Details: "detalhes", Order: &order}
	sess := newSession("")
	sess.PendingOrderSearch = "R777"

	msgs := env.dispatcher.HandleEmailProvided(context.Background(), sess, "ana@example.com")

	if sess.User.Email != "ana@example.com" {
		t.Errorf("email not bound to session: %q", sess.User.Email)
	}
	if sess.PendingOrderSearch != "" {
		t.Error("pending search not cleared")
	}
	if !hasComponent(msgs, entities.ComponentOrderList) {
		t.Error("order list missing after email-validated lookup")
	}
}

func TestHandleEmailProvidedStillNotFound(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	env.gateway.tracking = entities.TrackingInfo{Status: entities.TrackingNotFound}
	sess := newSession("")
	sess.PendingOrderSearch = "R777"

	msgs := env.dispatcher.HandleEmailProvided(context.Background(), sess, "ana@example.com")
	if !strings.Contains(lastText(msgs), "Não foi possível encontrar o pedido #R777 associado ao email ana@example.com") {
		t.Errorf("failure message missing: %q", lastText(msgs))
	}
}

func TestHandleEmailProvidedGatewayError(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	env.gateway.err = fmt.Errorf("cubbo timeout")
	sess := newSession("")
	sess.PendingOrderSearch = "R777"

	msgs := env.dispatcher.HandleEmailProvided(context.Background(), sess, "ana@example.com")

	if sess.PendingOrderSearch != "" {
		t.Error("pending search not cleared on gateway failure")
	}
	if !strings.Contains(lastText(msgs), "Não foi possível encontrar o pedido #R777") {
		t.Errorf("failure message missing: %q", lastText(msgs))
	}
}

func TestOpenSupportTicketRendersFormAndSuppressesOffer(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.OpenSupportTicket{Subject: "troca"}),
	}})
	sess := newSession("ana@example.com")
	sess.Attempts = 5
	sess.MentionedOrders = []string{"R42"}

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "quero abrir um chamado")

	if sess.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", sess.Attempts)
	}
	if !hasComponent(msgs, entities.ComponentTicketForm) {
		t.Fatal("ticket form component missing")
	}
	if hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("offer must not appear on a turn that opened a ticket")
	}
	for _, m := range msgs {
		if m.IsComponent() && m.Component.Kind == entities.ComponentTicketForm {
			if m.Component.Data["orderNumber"] != "R42" {
				t.Errorf("form not prefilled with mentioned order: %v", m.Component.Data)
			}
			if m.Component.Data["subject"] != "troca" {
				t.Errorf("form subject = %v", m.Component.Data["subject"])
			}
		}
	}
}

func TestTicketSubjectFallsBackToOutro(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.OpenSupportTicket{Subject: "alienígenas"}),
	}})
	sess := newSession("ana@example.com")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "chamado")
	for _, m := range msgs {
		if m.IsComponent() && m.Component.Kind == entities.ComponentTicketForm {
			if m.Component.Data["subject"] != "outro" {
				t.Errorf("unknown subject should clamp to outro, got %v", m.Component.Data["subject"])
			}
		}
	}
}

func TestEscalateToHumanResetsAndNotifies(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.EscalateToHuman{}),
	}})
	sess := newSession("ana@example.com")
	sess.Attempts = 4

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "quero falar com humano")

	if sess.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", sess.Attempts)
	}
	if env.notifier.escalations != 1 {
		t.Errorf("staff not notified, escalations = %d", env.notifier.escalations)
	}
	if !strings.Contains(lastText(msgs), "atendentes entrará em contato") {
		t.Errorf("handoff message missing: %q", lastText(msgs))
	}
	if hasComponent(msgs, entities.ComponentEscalationOffer) {
		t.Error("offer must not follow an explicit escalation")
	}
}

func TestSearchFAQDoesNotTouchAttempts(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.SearchFAQ{Query: "trocas"}),
	}})
	env.faq.result = entities.FAQResult{
		Answer:  "Você pode trocar em até 3 dias.",
		Sources: []entities.FAQEntry{{Question: "Como funciona a troca?"}},
	}
	sess := newSession("ana@example.com")
	sess.Attempts = 2

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "como funciona troca?")

	if sess.Attempts != 2 {
		t.Errorf("attempts = %d, want unchanged 2", sess.Attempts)
	}
	joined := ""
	for _, m := range msgs {
		joined += m.Text + "\n"
	}
	if !strings.Contains(joined, "Você pode trocar em até 3 dias.") {
		t.Errorf("answer missing:\n%s", joined)
	}
	if !strings.Contains(joined, "📚 Fonte do FAQ:") {
		t.Errorf("source attribution missing:\n%s", joined)
	}
}

func TestSearchFAQNoSourcesOffersTicket(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.SearchFAQ{Query: "algo obscuro"}),
	}})
	env.faq.result = entities.FAQResult{Answer: "Não encontrei uma resposta direta para sua pergunta no nosso FAQ. Você gostaria que eu abrisse um chamado de suporte?"}
	sess := newSession("ana@example.com")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "pergunta obscura")
	if !strings.Contains(lastText(msgs), "Gostaria de abrir um chamado para nossa equipe te ajudar pessoalmente?") {
		t.Errorf("ticket offer missing: %q", lastText(msgs))
	}
}

func TestUnknownActionApologizes(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.UnknownAction{Name: "selfDestruct"}),
	}})
	sess := newSession("")

	msgs := env.dispatcher.ProcessTurn(context.Background(), sess, "oi")
	if lastText(msgs) != "Desculpe, não consegui processar essa ação." {
		t.Errorf("apology missing: %q", lastText(msgs))
	}
	if sess.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", sess.Attempts)
	}
}

func TestConversationPersistedWithoutComponents(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		withActions(entities.FindCustomerOrders{}),
	}})
	env.gateway.orders = []entities.Order{{OrderNumber: "R9", Status: "shipped", CreatedAt: "2026-08-10T00:00:00Z"}}
	sess := newSession("ana@example.com")

	env.dispatcher.ProcessTurn(context.Background(), sess, "meus pedidos do R9")
	env.saver.Flush()

	if sess.ConversationID == "" {
		t.Fatal("conversation not created lazily after function-call outcome")
	}
	row := env.convs.get(sess.ConversationID)
	if row == nil {
		t.Fatal("conversation row missing")
	}
	if !row.Resolved {
		t.Error("conversation should be resolved after orders found")
	}
	for _, m := range row.Messages {
		if m.Text == "" {
			t.Error("component message leaked into persistence")
		}
	}
	found := false
	for _, o := range row.OrderNumbers {
		if o == "R9" {
			found = true
		}
	}
	if !found {
		t.Errorf("order numbers not aggregated: %v", row.OrderNumbers)
	}
}

func TestTextOnlyTurnsDoNotCreateConversation(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{
		textOnly("Pode detalhar?"),
		withActions(entities.FindCustomerOrders{}),
		textOnly("Mais alguma coisa?"),
	}})
	env.gateway.orders = []entities.Order{{OrderNumber: "R5", Status: "delivered", CreatedAt: "2026-08-15T00:00:00Z"}}
	sess := newSession("ana@example.com")

	env.dispatcher.ProcessTurn(context.Background(), sess, "oi")
	env.saver.Flush()
	if sess.ConversationID != "" {
		t.Fatalf("conversation %q created on a text-only turn", sess.ConversationID)
	}

	env.dispatcher.ProcessTurn(context.Background(), sess, "meus pedidos")
	env.saver.Flush()
	if sess.ConversationID == "" {
		t.Fatal("conversation not created on the first function-call outcome")
	}

	// Once the row exists, later text-only turns keep it current.
	before := env.convs.updates
	env.dispatcher.ProcessTurn(context.Background(), sess, "obrigada")
	env.saver.Flush()
	if env.convs.updates != before+1 {
		t.Errorf("text-only turn after creation should update the row, updates = %d", env.convs.updates)
	}
}

func TestAnonymousSessionNeverPersisted(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("oi!")}})
	sess := newSession("")

	env.dispatcher.ProcessTurn(context.Background(), sess, "olá")
	env.saver.Flush()

	if sess.ConversationID != "" {
		t.Error("conversation created for a visitor without email")
	}
}

func TestHandleFormSubmitTicket(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	sess := newSession("ana@example.com")
	sess.appendText("oi", entities.SenderUser)
	sess.appendComponent(entities.Component{Kind: entities.ComponentTicketForm})
	sess.Attempts = 3

	msgs, err := env.dispatcher.HandleFormSubmit(context.Background(), sess, "ticket",
		entities.Ticket{Subject: "reembolso", Description: "produto veio errado"}, "")
	if err != nil {
		t.Fatalf("HandleFormSubmit: %v", err)
	}

	if got := lastText(msgs); !strings.Contains(got, "O ID é #abc123.") {
		t.Errorf("confirmation missing short id: %q", got)
	}
	if sess.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", sess.Attempts)
	}
	for _, m := range sess.Messages {
		if m.IsComponent() {
			t.Error("form component should be removed after submit")
		}
	}
	if !sess.ShowFeedback {
		t.Error("feedback prompt should follow a resolution")
	}
	if len(env.tickets.created) != 1 {
		t.Fatalf("ticket not created")
	}
	if env.tickets.created[0].Email != "ana@example.com" {
		t.Errorf("ticket missing session identity: %+v", env.tickets.created[0])
	}

	env.saver.Flush()
	row := env.convs.get(sess.ConversationID)
	if row == nil || !row.Resolved {
		t.Error("conversation should be saved resolved after ticket submit")
	}
}

func TestHandleFormSubmitExchange(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	sess := newSession("ana@example.com")
	sess.appendText("quero trocar", entities.SenderUser)

	msgs, err := env.dispatcher.HandleFormSubmit(context.Background(), sess, "exchange", entities.Ticket{}, "R55")
	if err != nil {
		t.Fatalf("HandleFormSubmit: %v", err)
	}
	if got := lastText(msgs); !strings.Contains(got, "Sua solicitação de troca para o pedido R55 foi enviada.") {
		t.Errorf("exchange confirmation missing: %q", got)
	}
}

func TestHandleFeedback(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	sess := newSession("ana@example.com")
	sess.appendText("oi", entities.SenderUser)

	id, err := env.convs.Create(context.Background(), "ana@example.com", sess.ID, "general", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	sess.ConversationID = id
	sess.ShowFeedback = true

	if err := env.dispatcher.HandleFeedback(context.Background(), sess, 5, "ótimo"); err != nil {
		t.Fatalf("HandleFeedback: %v", err)
	}
	if sess.ShowFeedback {
		t.Error("feedback prompt should be dismissed")
	}
	row := env.convs.get(id)
	if row.Feedback == nil || row.Feedback.Rating != 5 {
		t.Errorf("feedback not stored: %+v", row.Feedback)
	}
}

func TestStartSessionReturningUser(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	env.convs.recent = []entities.Conversation{{OrderNumbers: []string{"R123"}}}
	sess := &ChatSession{ID: "s1", CompanyID: "general"}

	msgs := env.dispatcher.StartSession(context.Background(), sess, entities.User{Name: "Ana", Email: "ana@example.com"})

	if len(msgs) != 1 {
		t.Fatalf("welcome should be a single message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Text, "Olá novamente, Ana!") {
		t.Errorf("returning greeting missing:\n%s", msgs[0].Text)
	}
	if !strings.Contains(msgs[0].Text, "sobre o pedido R123.") {
		t.Errorf("previous order mention missing:\n%s", msgs[0].Text)
	}
}

func TestContextInfoCarriesAttemptsAndHistory(t *testing.T) {
	resolver := &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}}
	env := newTestEnv(t, resolver)
	sess := newSession("ana@example.com")
	sess.Attempts = 2
	sess.History = []entities.Conversation{{OrderNumbers: []string{"R1", "R2"}}}

	env.dispatcher.ProcessTurn(context.Background(), sess, "e aí?")

	if !strings.Contains(resolver.lastTurn, "[Tentativas sem resolução: 2]") {
		t.Errorf("attempt annotation missing: %q", resolver.lastTurn)
	}
	if !strings.Contains(resolver.lastTurn, "[Contexto: Usuário mencionou anteriormente os pedidos: R1, R2]") {
		t.Errorf("history annotation missing: %q", resolver.lastTurn)
	}
}

func TestMentionedOrdersExtractedFromUserText(t *testing.T) {
	env := newTestEnv(t, &fakeResolver{responses: []*entities.ResolverResponse{textOnly("ok")}})
	sess := newSession("")

	env.dispatcher.ProcessTurn(context.Background(), sess, "meu pedido R595531189-dup e o LP-44 sumiram")

	want := map[string]bool{"R595531189-dup": true, "LP-44": true}
	for _, o := range sess.MentionedOrders {
		delete(want, o)
	}
	if len(want) != 0 {
		t.Errorf("orders not extracted, missing %v (got %v)", want, sess.MentionedOrders)
	}
}

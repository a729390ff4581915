package usecases

import (
	"context"
	"fmt"
	"log"
	"strings"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/infrastructure"
	"suporte-lojinha/internal/interfaces"
)

// Dispatcher runs the chat flow: it forwards each visitor turn to the intent
// resolver, executes the structured actions that come back and appends the
// outcome to the session transcript.
type Dispatcher struct {
	resolver  interfaces.IntentResolver
	orders    interfaces.OrderGateway
	tickets   interfaces.TicketService
	faq       interfaces.FAQSearcher
	convs     interfaces.ConversationStore
	companies interfaces.CompanyResolver
	notifier  interfaces.StaffNotifier
	saver     *ConversationSaver
}

func NewDispatcher(
	resolver interfaces.IntentResolver,
	orders interfaces.OrderGateway,
	tickets interfaces.TicketService,
	faq interfaces.FAQSearcher,
	convs interfaces.ConversationStore,
	companies interfaces.CompanyResolver,
	notifier interfaces.StaffNotifier,
	saver *ConversationSaver,
) *Dispatcher {
	return &Dispatcher{
		resolver:  resolver,
		orders:    orders,
		tickets:   tickets,
		faq:       faq,
		convs:     convs,
		companies: companies,
		notifier:  notifier,
		saver:     saver,
	}
}

// StartSession prepares a fresh session: resolves the tenant from the
// visitor's email, loads recent history and opens the transcript with the
// welcome message.
func (d *Dispatcher) StartSession(ctx context.Context, sess *ChatSession, user entities.User) []entities.Message {
	sess.Lock()
	defer sess.Unlock()

	sess.User = user
	if user.Email != "" {
		companyID, err := d.companies.CompanyFromEmail(ctx, user.Email)
		if err == nil && companyID != "" {
			sess.CompanyID = companyID
		}
		history, err := d.convs.GetRecentByUser(ctx, user.Email, 3)
		if err != nil {
			log.Printf("[chat] history load failed: %v", err)
		}
		sess.History = history
	}

	greeting := ""
	if sess.CompanyID != "" && sess.CompanyID != "general" {
		g, err := d.companies.GreetingFor(ctx, sess.CompanyID)
		if err == nil {
			greeting = g
		}
	}

	returning := len(sess.History) > 0
	welcome := BuildWelcome(greeting, user, returning, sess.History)
	sess.appendText(welcome, entities.SenderBot)
	return append([]entities.Message(nil), sess.Messages...)
}

// ProcessTurn handles one visitor message end to end and returns the
// messages appended during the turn.
func (d *Dispatcher) ProcessTurn(ctx context.Context, sess *ChatSession, text string) []entities.Message {
	sess.Lock()
	defer sess.Unlock()

	start := len(sess.Messages)
	sess.appendText(text, entities.SenderUser)
	sess.rememberOrders(infrastructure.ExtractOrderNumbers(text))

	response, err := d.resolver.Resolve(ctx, d.transcript(sess), text+d.contextInfo(sess))
	if err != nil || response == nil {
		if err != nil {
			log.Printf("[chat] resolver failed: %v", err)
		}
		sess.appendText("Desculpe, ocorreu um erro. Por favor, tente novamente.", entities.SenderBot)
		sess.Attempts++
		return sess.Messages[start:]
	}

	orderFound, ticketOpened := d.applyResponse(ctx, sess, response)

	// A conversation row exists only after the first function-call outcome;
	// text-only turns update an existing row but never open one.
	if len(response.Actions) > 0 || sess.ConversationID != "" {
		d.saver.Enqueue(sess, orderFound || ticketOpened)
	}

	if ShouldOfferEscalation(sess.Attempts, ticketOpened, sess.EscalationOffered) {
		sess.EscalationOffered = true
		sess.appendText(EscalationOfferText, entities.SenderBot)
		sess.appendComponent(escalationOfferComponent(sess.MentionedOrders))
	}

	return sess.Messages[start:]
}

// contextInfo annotates the turn with state the stateless resolver cannot
// see: orders from the previous conversation and the unresolved-attempt count.
func (d *Dispatcher) contextInfo(sess *ChatSession) string {
	var b strings.Builder
	if len(sess.History) > 0 && len(sess.History[0].OrderNumbers) > 0 {
		fmt.Fprintf(&b, "\n[Contexto: Usuário mencionou anteriormente os pedidos: %s]",
			strings.Join(sess.History[0].OrderNumbers, ", "))
	}
	if sess.Attempts > 0 {
		fmt.Fprintf(&b, "\n[Tentativas sem resolução: %d]", sess.Attempts)
	}
	return b.String()
}

// transcript projects the session onto resolver turns. Component messages
// carry no text and are skipped.
func (d *Dispatcher) transcript(sess *ChatSession) []interfaces.TranscriptTurn {
	var turns []interfaces.TranscriptTurn
	for _, m := range sess.Messages {
		if m.IsComponent() || m.Text == "" {
			continue
		}
		role := "model"
		if m.Sender == entities.SenderUser {
			role = "user"
		}
		turns = append(turns, interfaces.TranscriptTurn{Role: role, Text: m.Text})
	}
	return turns
}

// applyResponse executes the resolver's reply against the session and
// reports whether the turn found an order or opened a ticket.
func (d *Dispatcher) applyResponse(ctx context.Context, sess *ChatSession, response *entities.ResolverResponse) (orderFound, ticketOpened bool) {
	if len(response.Actions) == 0 {
		if response.Text != "" {
			sess.appendText(response.Text, entities.SenderBot)
		}
		sess.Attempts++
		return false, false
	}

	for _, action := range response.Actions {
		switch a := action.(type) {
		case entities.FindCustomerOrders:
			if d.handleFindOrders(ctx, sess) {
				orderFound = true
			}
		case entities.TrackOrder:
			if d.handleTrackOrder(ctx, sess, a) {
				orderFound = true
			}
		case entities.InitiateExchange:
			sess.appendComponent(entities.Component{
				Kind: entities.ComponentExchangeForm,
				Data: map[string]any{"orderId": a.OrderID},
			})
		case entities.OpenSupportTicket:
			ticketOpened = true
			sess.resetAttempts()
			d.offerTicketForm(sess, a)
		case entities.SearchFAQ:
			d.handleSearchFAQ(ctx, sess, a.Query)
		case entities.EscalateToHuman:
			sess.appendText("Entendi. Um de nossos atendentes entrará em contato com você por e-mail em breve para dar continuidade ao seu atendimento.", entities.SenderBot)
			ticketOpened = true
			sess.resetAttempts()
			if d.notifier != nil {
				d.notifier.NotifyEscalation(sess.User.Email, sess.ID)
			}
		case entities.UnknownAction:
			sess.appendText("Desculpe, não consegui processar essa ação.", entities.SenderBot)
			sess.Attempts++
		}
	}
	return orderFound, ticketOpened
}

func (d *Dispatcher) handleFindOrders(ctx context.Context, sess *ChatSession) bool {
	orders, err := d.orders.FindOrdersByCustomer(ctx, sess.User.Email, sess.User.Phone)
	if err != nil {
		log.Printf("[chat] find orders failed: %v", err)
		sess.appendText("Desculpe, ocorreu um erro ao buscar seus pedidos. Por favor, tente novamente ou entre em contato conosco.", entities.SenderBot)
		return false
	}
	if len(orders) == 0 {
		sess.appendText("Não encontrei nenhum pedido associado ao seu email ou telefone. Verifique se os dados estão corretos ou entre em contato conosco.", entities.SenderBot)
		sess.Attempts++
		return false
	}

	sess.resetAttempts()
	if len(orders) == 1 {
		sess.appendText("Encontrei 1 pedido seu:", entities.SenderBot)
	} else {
		sess.appendText(fmt.Sprintf("Encontrei %d pedidos seus:", len(orders)), entities.SenderBot)
	}
	sess.appendComponent(orderListComponent(orders))

	lines := make([]string, 0, len(orders))
	for _, order := range orders {
		lines = append(lines, fmt.Sprintf("• Pedido %s - %s (%s)",
			order.OrderNumber, infrastructure.TranslateOrderStatus(order.Status), orderDate(order)))
		sess.rememberOrders([]string{order.OrderNumber})
	}
	sess.appendText(fmt.Sprintf("\n%s\n\nVocê pode perguntar sobre um pedido específico informando o número do pedido.",
		strings.Join(lines, "\n")), entities.SenderBot)
	return true
}

func (d *Dispatcher) handleTrackOrder(ctx context.Context, sess *ChatSession, a entities.TrackOrder) bool {
	searchValue := a.OrderID
	if searchValue == "" {
		searchValue = a.CustomerEmail
	}

	if a.OrderID != "" {
		sess.appendText(fmt.Sprintf("Buscando informações do pedido %s... 🔍", a.OrderID), entities.SenderBot)
	} else {
		sess.appendText("Buscando seus pedidos... 🔍", entities.SenderBot)
	}

	email := a.CustomerEmail
	if email == "" {
		email = sess.User.Email
	}
	info, err := d.orders.TrackOrder(ctx, searchValue, email)
	if err != nil {
		log.Printf("[chat] track order failed: %v", err)
		sess.appendText("Desculpe, ocorreu um erro ao consultar o pedido. Por favor, tente novamente.", entities.SenderBot)
		sess.Attempts++
		return false
	}

	// No email known at all: ask for one before giving up on the code.
	if info.Status == entities.TrackingNotFound && a.OrderID != "" && a.CustomerEmail == "" && sess.User.Email == "" {
		sess.PendingOrderSearch = a.OrderID
		sess.appendText(fmt.Sprintf("Não encontrei o pedido #%s sem validação de email. Vou solicitar seu email para continuar a busca.", a.OrderID), entities.SenderBot)
		sess.appendComponent(entities.Component{
			Kind: entities.ComponentEmailRequest,
			Data: map[string]any{
				"orderId": a.OrderID,
				"reason":  "Para encontrar seu pedido, precisamos confirmar seu email. Por favor, informe o email usado na compra.",
			},
		})
		return false
	}

	if info.Status == entities.TrackingNotFound {
		sess.appendText(fmt.Sprintf("Não foi possível encontrar o pedido #%s. Verifique se o código está correto ou entre em contato conosco para mais informações.", a.OrderID), entities.SenderBot)
		sess.Attempts++
		return false
	}

	if !info.Found() {
		// Unauthorized or gateway error: the details already explain it.
		sess.appendText(info.Details, entities.SenderBot)
		sess.Attempts++
		return false
	}

	sess.resetAttempts()
	if info.Order != nil {
		sess.rememberOrders([]string{info.Order.OrderNumber})
		sess.appendComponent(orderListComponent([]entities.Order{*info.Order}))
	} else if len(info.Orders) > 0 {
		for _, o := range info.Orders {
			sess.rememberOrders([]string{o.OrderNumber})
		}
		sess.appendComponent(orderListComponent(info.Orders))
	}
	sess.appendText(info.Details, entities.SenderBot)
	return true
}

// offerTicketForm renders the ticket form prefilled with what the session
// already knows about the visitor and the order under discussion.
func (d *Dispatcher) offerTicketForm(sess *ChatSession, a entities.OpenSupportTicket) {
	orderNumber := a.OrderNumber
	if orderNumber == "" && len(sess.MentionedOrders) > 0 {
		orderNumber = sess.MentionedOrders[0]
	}
	sess.appendComponent(entities.Component{
		Kind: entities.ComponentTicketForm,
		Data: map[string]any{
			"name":        sess.User.Name,
			"email":       sess.User.Email,
			"phone":       sess.User.Phone,
			"orderNumber": orderNumber,
			"subject":     entities.NormalizeTicketSubject(a.Subject),
		},
	})
}

func (d *Dispatcher) handleSearchFAQ(ctx context.Context, sess *ChatSession, query string) {
	sess.appendText(fmt.Sprintf("Buscando informações sobre \"%s\"... 🔍", query), entities.SenderBot)

	result, err := d.faq.SearchSemantic(ctx, query, sess.CompanyID)
	if err != nil {
		log.Printf("[chat] semantic faq failed, falling back to keyword: %v", err)
		answer, kwErr := d.faq.SearchKeyword(ctx, query)
		if kwErr != nil || answer == "" {
			answer = "Ocorreu um erro ao buscar. Gostaria de abrir um chamado?"
		}
		sess.appendText(answer, entities.SenderBot)
		return
	}

	sess.appendText(result.Answer, entities.SenderBot)

	if len(result.Sources) > 0 {
		plural := ""
		if len(result.Sources) > 1 {
			plural = "s"
		}
		sources := result.Sources
		if len(sources) > 3 {
			sources = sources[:3]
		}
		lines := make([]string, 0, len(sources))
		for i, src := range sources {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, src.Question))
		}
		sess.appendText(fmt.Sprintf("\n\n📚 Fonte%s do FAQ:\n%s", plural, strings.Join(lines, "\n")), entities.SenderBot)

		if len(result.SuggestedQuestions) > 0 {
			suggestions := make([]string, 0, len(result.SuggestedQuestions))
			for _, q := range result.SuggestedQuestions {
				suggestions = append(suggestions, "• "+q)
			}
			sess.appendText(fmt.Sprintf("\n\n💡 Perguntas relacionadas:\n%s", strings.Join(suggestions, "\n")), entities.SenderBot)
		}
	} else {
		sess.appendText("Não encontrei uma resposta completa para sua pergunta. Gostaria de abrir um chamado para nossa equipe te ajudar pessoalmente?", entities.SenderBot)
	}
}

// HandleEmailProvided resumes a lookup that was waiting for the visitor's
// email, and binds the email to the session identity.
func (d *Dispatcher) HandleEmailProvided(ctx context.Context, sess *ChatSession, email string) []entities.Message {
	sess.Lock()
	defer sess.Unlock()

	start := len(sess.Messages)
	sess.dropComponents()
	start = min(start, len(sess.Messages))

	if sess.User.Email == "" {
		sess.User.Email = email
		if companyID, err := d.companies.CompanyFromEmail(ctx, email); err == nil && companyID != "" {
			sess.CompanyID = companyID
		}
	}

	pending := sess.PendingOrderSearch
	if pending == "" {
		return sess.Messages[start:]
	}
	sess.PendingOrderSearch = ""

	sess.appendText(fmt.Sprintf("Buscando pedido #%s com o email fornecido...", pending), entities.SenderBot)

	info, err := d.orders.TrackOrder(ctx, pending, email)
	if err != nil {
		log.Printf("[chat] track order %s with provided email failed: %v", pending, err)
	}
	found := err == nil && info.Order != nil
	if found {
		sess.rememberOrders([]string{info.Order.OrderNumber})
		sess.appendComponent(orderListComponent([]entities.Order{*info.Order}))
		sess.appendText(info.Details, entities.SenderBot)
		sess.resetAttempts()
	} else {
		sess.appendText(fmt.Sprintf("Não foi possível encontrar o pedido #%s associado ao email %s. Verifique se o código do pedido e o email estão corretos.", pending, email), entities.SenderBot)
	}

	d.saver.Enqueue(sess, found)
	return sess.Messages[start:]
}

// HandleFormSubmit finishes an exchange or ticket form: the rendered form is
// removed, a confirmation lands in the transcript and the attempt counter
// resets.
func (d *Dispatcher) HandleFormSubmit(ctx context.Context, sess *ChatSession, formType string, ticket entities.Ticket, exchangeOrderID string) ([]entities.Message, error) {
	sess.Lock()
	defer sess.Unlock()

	var confirmation string
	switch formType {
	case "exchange":
		confirmation = fmt.Sprintf("Sua solicitação de troca para o pedido %s foi enviada. Entraremos em contato por e-mail.", exchangeOrderID)
	case "ticket":
		if ticket.Name == "" {
			ticket.Name = sess.User.Name
		}
		if ticket.Email == "" {
			ticket.Email = sess.User.Email
		}
		if ticket.Phone == "" {
			ticket.Phone = sess.User.Phone
		}
		id, err := d.tickets.CreateTicket(ctx, ticket)
		if err != nil {
			return nil, err
		}
		short := id
		if len(short) > 6 {
			short = short[:6]
		}
		confirmation = fmt.Sprintf("Seu chamado de suporte foi criado com sucesso! O ID é #%s. Nossa equipe entrará em contato em breve.", short)
	default:
		return nil, fmt.Errorf("unknown form type %q", formType)
	}

	sess.dropComponents()
	start := len(sess.Messages)
	sess.appendText(confirmation, entities.SenderSystem)
	sess.resetAttempts()

	if sess.User.Email != "" {
		d.saver.Enqueue(sess, true)
		sess.ShowFeedback = true
	}
	return sess.Messages[start:], nil
}

// HandleFeedback attaches the post-resolution rating to the conversation.
func (d *Dispatcher) HandleFeedback(ctx context.Context, sess *ChatSession, rating int, comment string) error {
	sess.Lock()
	convID := sess.ConversationID
	sess.ShowFeedback = false
	sess.Unlock()

	if convID == "" {
		return fmt.Errorf("no conversation to attach feedback to")
	}
	return d.convs.AttachFeedback(ctx, convID, rating, comment)
}

// Flush drains pending conversation writes.
func (d *Dispatcher) Flush() {
	d.saver.Flush()
}

func orderListComponent(orders []entities.Order) entities.Component {
	return entities.Component{
		Kind: entities.ComponentOrderList,
		Data: map[string]any{"orders": orders},
	}
}

func orderDate(order entities.Order) string {
	return infrastructure.FormatCompactDate(order.CreatedAt)
}

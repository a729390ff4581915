package usecases

import "suporte-lojinha/internal/entities"

// EscalationThreshold is how many unresolved attempts trigger the
// open-a-ticket offer.
const EscalationThreshold = 3

// EscalationOfferText precedes the offer component.
const EscalationOfferText = "Vejo que ainda não conseguimos resolver sua questão. Gostaria de abrir um chamado para nossa equipe te ajudar pessoalmente?"

// ShouldOfferEscalation decides whether this turn ends with the escalation
// offer. A turn that already opened a ticket (or escalated) never offers, and
// an offer already made stays silent until the counter resets and climbs back
// to the threshold.
func ShouldOfferEscalation(attempts int, ticketOpened, alreadyOffered bool) bool {
	return attempts >= EscalationThreshold && !ticketOpened && !alreadyOffered
}

// escalationOfferComponent carries the order number to prefill the ticket
// form with, when one is known.
func escalationOfferComponent(mentionedOrders []string) entities.Component {
	data := map[string]any{
		"message": "Nossa equipe pode ajudar com questões mais complexas.",
	}
	if len(mentionedOrders) > 0 {
		data["orderNumber"] = mentionedOrders[0]
	}
	return entities.Component{Kind: entities.ComponentEscalationOffer, Data: data}
}

package usecases

import (
	"fmt"
	"strings"

	"suporte-lojinha/internal/entities"
)

// WidgetGreeting opens every fresh chat before a tenant greeting is known.
const WidgetGreeting = "Olá! 👋 Sou o assistente virtual. Como posso te ajudar hoje?"

// BuildWelcome composes the first bot message of a session. Returning
// visitors are greeted by name, and the last conversation's order numbers are
// mentioned so they can pick up where they left off.
func BuildWelcome(greeting string, user entities.User, returning bool, history []entities.Conversation) string {
	if greeting == "" {
		greeting = WidgetGreeting
	}
	welcome := greeting

	if returning && user.Name != "" {
		welcome = fmt.Sprintf("%s\n\nOlá novamente, %s! 👋 Que bom te ver de volta!", greeting, user.Name)

		if len(history) > 0 && len(history[0].OrderNumbers) > 0 {
			orders := history[0].OrderNumbers
			noun := "o pedido"
			if len(orders) > 1 {
				noun = "os pedidos"
			}
			welcome += fmt.Sprintf("\n\nVi que você teve uma conversa anterior sobre %s %s.", noun, strings.Join(orders, ", "))
		}
	}

	welcome += "\n\nVocê pode rastrear um pedido, solicitar uma troca ou tirar dúvidas."
	return welcome
}

package infrastructure

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"suporte-lojinha/internal/entities"
)

// TelegramNotifier pushes support events to the staff group chat. A missing
// or bad token disables it instead of failing startup.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) *TelegramNotifier {
	if token == "" || chatID == 0 {
		log.Println("[telegram] token or chat id missing, staff notifications disabled")
		return &TelegramNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Printf("[telegram] bot init failed, notifications disabled: %v", err)
		return &TelegramNotifier{}
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) send(text string) {
	if t.bot == nil {
		return
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("[telegram] send failed: %v", err)
	}
}

func (t *TelegramNotifier) NotifyTicket(ticket entities.Ticket) {
	t.send(fmt.Sprintf(
		"🎫 *Novo chamado* #%s\n*Assunto:* %s\n*Cliente:* %s (%s)\n*Pedido:* %s",
		ticket.ShortID(), ticket.Subject, ticket.Name, ticket.Email, orDash(ticket.OrderNumber)))
}

func (t *TelegramNotifier) NotifyEscalation(userEmail, sessionID string) {
	t.send(fmt.Sprintf(
		"🙋 *Cliente pediu atendimento humano*\n*Email:* %s\n*Sessão:* %s",
		orDash(userEmail), sessionID))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

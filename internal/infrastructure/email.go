package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// PostmarkClient sends transactional mail through the Postmark email proxy.
type PostmarkClient struct {
	proxyURL string
	http     *http.Client
}

func NewPostmarkClient(proxyURL string) *PostmarkClient {
	return &PostmarkClient{
		proxyURL: proxyURL,
		http:     &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PostmarkClient) Send(ctx context.Context, to, subject, htmlBody string) error {
	payload, err := json.Marshal(map[string]string{
		"to":       to,
		"subject":  subject,
		"htmlBody": htmlBody,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.proxyURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("email proxy request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var errBody struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
			return fmt.Errorf("email proxy: %s", errBody.Error)
		}
		return fmt.Errorf("email proxy returned status %d", resp.StatusCode)
	}
	return nil
}

// TicketCreatedEmail builds the confirmation mail sent right after a ticket
// is opened.
func TicketCreatedEmail(name, shortID, subject, orderNumber string) (mailSubject, htmlBody string) {
	orderInfo := ""
	if orderNumber != "" {
		orderInfo = fmt.Sprintf(" relacionado ao pedido %s", orderNumber)
	}
	htmlBody = fmt.Sprintf(`
      <div style="font-family: sans-serif; line-height: 1.6;">
        <h2>Olá %s,</h2>
        <p>Seu chamado de suporte foi criado com sucesso%s!</p>
        <div style="background-color: #f4f4f4; border-left: 4px solid #3498db; padding: 15px; margin: 20px 0;">
          <p><strong>ID do Chamado:</strong> #%s</p>
          <p><strong>Assunto:</strong> %s</p>
          <p><strong>Status:</strong> Aberto</p>
        </div>
        <p>Nossa equipe entrará em contato em breve para resolver sua questão.</p>
        <p>Atenciosamente,<br>Equipe de Suporte</p>
      </div>`, name, orderInfo, shortID, subject)
	return fmt.Sprintf("Chamado de Suporte Criado - #%s", shortID), htmlBody
}

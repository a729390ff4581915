package http

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"suporte-lojinha/internal/entities"
	"suporte-lojinha/internal/infrastructure"
	"suporte-lojinha/internal/interfaces"
	"suporte-lojinha/internal/usecases"
)

type Handler struct {
	dispatcher *usecases.Dispatcher
	registry   *usecases.SessionRegistry
	sessions   interfaces.SessionStore
	tickets    interfaces.TicketService
	mw         *Middleware
}

func NewHandler(
	dispatcher *usecases.Dispatcher,
	registry *usecases.SessionRegistry,
	sessions interfaces.SessionStore,
	tickets interfaces.TicketService,
	mw *Middleware,
) *Handler {
	return &Handler{
		dispatcher: dispatcher,
		registry:   registry,
		sessions:   sessions,
		tickets:    tickets,
		mw:         mw,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.Use(h.mw.CORSMiddleware())
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(64 << 10))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/chat/session", h.CreateSession)

	authed := api.Group("")
	authed.Use(h.mw.SessionRequired())

	chat := authed.Group("/chat")
	chat.Use(h.mw.RateLimitPerSession(rate.Every(2*time.Second), 5))
	chat.POST("/message", h.PostMessage)
	chat.POST("/form", h.SubmitForm)
	chat.POST("/email", h.ProvideEmail)
	chat.POST("/feedback", h.SubmitFeedback)

	authed.GET("/tickets", h.ListTickets)
}

type createSessionRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CreateSession opens a chat session: a durable session identity, a signed
// token for the widget and the welcome message.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email"})
		return
	}

	sessionID := uuid.NewString()
	token, expiresAt, err := h.mw.IssueSessionToken(sessionID)
	if err != nil {
		log.Printf("[http] token issue failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create session"})
		return
	}
	if err := h.sessions.Put(sessionID, req.Email, expiresAt); err != nil {
		log.Printf("[http] session persist failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create session"})
		return
	}

	sess := h.registry.GetOrCreate(sessionID)
	messages := h.dispatcher.StartSession(c.Request.Context(), sess, entities.User{
		Name:  req.Name,
		Email: strings.ToLower(strings.TrimSpace(req.Email)),
		Phone: req.Phone,
	})

	sess.Lock()
	returning := len(sess.History) > 0
	sess.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"sessionId": sessionID,
		"expiresAt": expiresAt.Unix(),
		"returning": returning,
		"messages":  messages,
	})
}

// session loads the live session for the authenticated request. A token that
// outlived its durable record is rejected.
func (h *Handler) session(c *gin.Context) (*usecases.ChatSession, bool) {
	sessionID := c.GetString("session_id")
	_, ok, err := h.sessions.Get(sessionID)
	if err != nil {
		log.Printf("[http] session lookup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
		return nil, false
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return nil, false
	}
	return h.registry.GetOrCreate(sessionID), true
}

type postMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) PostMessage(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text required"})
		return
	}

	sess.Lock()
	sess.LastSeen = time.Now()
	sess.Unlock()

	messages := h.dispatcher.ProcessTurn(c.Request.Context(), sess, req.Text)

	sess.Lock()
	showFeedback := sess.ShowFeedback
	sess.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"messages":     messages,
		"showFeedback": showFeedback,
	})
}

type submitFormRequest struct {
	FormType string `json:"formType" binding:"required"`
	OrderID  string `json:"orderId"`
	Ticket   struct {
		Subject     string `json:"subject"`
		Description string `json:"description"`
		Priority    string `json:"priority"`
		Name        string `json:"name"`
		Email       string `json:"email"`
		Phone       string `json:"phone"`
		OrderNumber string `json:"orderNumber"`
	} `json:"ticket"`
}

func (h *Handler) SubmitForm(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req submitFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	ticket := entities.Ticket{
		Subject:     req.Ticket.Subject,
		Description: req.Ticket.Description,
		Priority:    req.Ticket.Priority,
		Name:        req.Ticket.Name,
		Email:       req.Ticket.Email,
		Phone:       req.Ticket.Phone,
		OrderNumber: req.Ticket.OrderNumber,
	}
	messages, err := h.dispatcher.HandleFormSubmit(c.Request.Context(), sess, req.FormType, ticket, req.OrderID)
	if err != nil {
		log.Printf("[http] form submit failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages, "showFeedback": true})
}

type provideEmailRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) ProvideEmail(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req provideEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil || !strings.Contains(req.Email, "@") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid email required"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	messages := h.dispatcher.HandleEmailProvided(c.Request.Context(), sess, email)

	// Keep the durable record in step with the newly learned identity.
	if _, ok, err := h.sessions.Get(sess.ID); err == nil && ok {
		sess.Lock()
		_ = h.sessions.Put(sess.ID, sess.User.Email, time.Now().Add(infrastructure.SessionTTL))
		sess.Unlock()
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type feedbackRequest struct {
	Rating  int    `json:"rating" binding:"required"`
	Comment string `json:"comment"`
}

func (h *Handler) SubmitFeedback(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Rating < 1 || req.Rating > 5 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rating between 1 and 5 required"})
		return
	}

	if err := h.dispatcher.HandleFeedback(c.Request.Context(), sess, req.Rating, req.Comment); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListTickets returns the visitor's open tickets, identified by the session's
// email or phone.
func (h *Handler) ListTickets(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	sess.Lock()
	email, phone := sess.User.Email, sess.User.Phone
	sess.Unlock()

	if email == "" && phone == "" {
		c.JSON(http.StatusOK, gin.H{"tickets": []entities.Ticket{}})
		return
	}

	tickets, err := h.tickets.TicketsByUser(c.Request.Context(), email, phone)
	if err != nil {
		log.Printf("[http] list tickets failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not list tickets"})
		return
	}
	if tickets == nil {
		tickets = []entities.Ticket{}
	}
	c.JSON(http.StatusOK, gin.H{"tickets": tickets})
}

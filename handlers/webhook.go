package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"questrent/models"
	"questrent/services/booking"
	"questrent/services/intake"
	"questrent/utils"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler is the Telegram side of the intake dialogue. It translates
// bot updates into intake events, feeds them to the state machine and
// renders the machine's replies as messages and inline keyboards. Requester
// identity resolution and all formatting live here, never in the machine.
type WebhookHandler struct {
	Bot         *tgbotapi.BotAPI
	Machine     *intake.Machine
	Lifecycle   *booking.LifecycleService
	Tariffs     booking.Tariffs
	Capacity    int
	AdminChatID int64
	Logger      *zap.Logger
}

func NewWebhookHandler(bot *tgbotapi.BotAPI, machine *intake.Machine, lifecycle *booking.LifecycleService, tariffs booking.Tariffs, capacity int, adminChatID int64, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		Bot:         bot,
		Machine:     machine,
		Lifecycle:   lifecycle,
		Tariffs:     tariffs,
		Capacity:    capacity,
		AdminChatID: adminChatID,
		Logger:      logger,
	}
}

// HandleUpdate handles POST /api/telegram/webhook.
func (h *WebhookHandler) HandleUpdate(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid update payload", err.Error())
		return
	}

	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(c, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		h.handleCommand(c, update.Message)
	case update.Message != nil:
		h.dispatch(c, update.Message.Chat.ID, 0, models.IntakeEvent{
			UserID:    update.Message.From.ID,
			Username:  update.Message.From.UserName,
			FirstName: update.Message.From.FirstName,
			Type:      models.EventText,
			Value:     update.Message.Text,
		})
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCallback maps inline-keyboard selections onto intake events.
func (h *WebhookHandler) handleCallback(c *gin.Context, query *tgbotapi.CallbackQuery) {
	// Acknowledge the button press so the client stops its spinner.
	if _, err := h.Bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		h.Logger.Warn("failed to answer callback query", zap.Error(err))
	}

	ev := models.IntakeEvent{
		UserID:    query.From.ID,
		Username:  query.From.UserName,
		FirstName: query.From.FirstName,
	}
	data := query.Data
	switch {
	case data == "restart":
		ev.Type = models.EventRestart
	case strings.HasPrefix(data, "units_"):
		ev.Type = models.EventSelectUnits
		ev.Value = strings.TrimPrefix(data, "units_")
	case strings.HasPrefix(data, "days_"):
		ev.Type = models.EventSelectDays
		ev.Value = strings.TrimPrefix(data, "days_")
	case strings.HasPrefix(data, "date_"):
		ev.Type = models.EventSelectDate
		ev.Value = strings.TrimPrefix(data, "date_")
	default:
		h.Logger.Warn("unknown callback data", zap.String("data", data))
		return
	}

	h.dispatch(c, query.Message.Chat.ID, query.Message.MessageID, ev)
}

// dispatch runs one intake event through the machine and delivers the reply.
// messageID, when non-zero, identifies the keyboard message to edit in place.
func (h *WebhookHandler) dispatch(c *gin.Context, chatID int64, messageID int, ev models.IntakeEvent) {
	reply, err := h.Machine.Handle(c.Request.Context(), ev)
	if err != nil {
		// Expected dialogue errors come paired with a user-facing reply;
		// anything without one is an infrastructure fault.
		h.Logger.Warn("intake event failed",
			zap.Int64("userID", ev.UserID),
			zap.String("type", ev.Type),
			zap.Error(err))
	}
	if reply == nil {
		if err != nil {
			h.send(chatID, 0, errorFallbackReply())
		}
		return
	}
	h.send(chatID, messageID, reply)
}

func errorFallbackReply() *models.Reply {
	return &models.Reply{
		Kind: models.ReplyError,
		Text: "Something went wrong on our side. Please try again in a minute.",
	}
}

// send renders a Reply as a Telegram message, editing the originating
// keyboard message when possible.
func (h *WebhookHandler) send(chatID int64, messageID int, reply *models.Reply) {
	markup := keyboardFor(reply)

	var err error
	if messageID != 0 {
		if markup != nil {
			edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, reply.Text, *markup)
			_, err = h.Bot.Send(edit)
		} else {
			edit := tgbotapi.NewEditMessageText(chatID, messageID, reply.Text)
			_, err = h.Bot.Send(edit)
		}
	} else {
		msg := tgbotapi.NewMessage(chatID, reply.Text)
		if markup != nil {
			msg.ReplyMarkup = *markup
		}
		_, err = h.Bot.Send(msg)
	}
	if err != nil {
		h.Logger.Error("failed to deliver reply",
			zap.Int64("chatID", chatID), zap.Error(err))
	}
}

func keyboardFor(reply *models.Reply) *tgbotapi.InlineKeyboardMarkup {
	if len(reply.Options) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(reply.Options))
	for _, opt := range reply.Options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(opt.Label, opt.Data),
		))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// handleCommand serves /start and /admin.
func (h *WebhookHandler) handleCommand(c *gin.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		h.sendWelcome(msg)
	case "admin":
		h.sendAdminPanel(c, msg)
	}
}

func (h *WebhookHandler) sendWelcome(msg *tgbotapi.Message) {
	var tariffLines []string
	for _, units := range h.Tariffs.UnitChoices(h.Capacity) {
		tariffLines = append(tariffLines, fmt.Sprintf("%d headset(s):", units))
		for _, d := range h.Tariffs.DayChoices(units) {
			price, _ := h.Tariffs.Price(units, d)
			tariffLines = append(tariffLines, fmt.Sprintf("  %d day(s): %d", d, price))
		}
	}

	text := fmt.Sprintf(
		"Welcome, %s!\n\nI rent out Meta Quest 3 headsets (%d in the fleet).\n\nRates:\n%s\n\nTap the button below to book.",
		msg.From.FirstName, h.Capacity, strings.Join(tariffLines, "\n"))

	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Book headsets", "restart"),
		),
	)
	if _, err := h.Bot.Send(out); err != nil {
		h.Logger.Error("failed to send welcome", zap.Error(err))
	}
}

// sendAdminPanel reports fleet stats to the operator chat only.
func (h *WebhookHandler) sendAdminPanel(c *gin.Context, msg *tgbotapi.Message) {
	if msg.Chat.ID != h.AdminChatID {
		out := tgbotapi.NewMessage(msg.Chat.ID, "You do not have access to the admin panel.")
		if _, err := h.Bot.Send(out); err != nil {
			h.Logger.Error("failed to send admin rejection", zap.Error(err))
		}
		return
	}

	now := time.Now().UTC()
	active, err := h.Lifecycle.ActiveReservations(c.Request.Context(), now)
	if err != nil {
		h.Logger.Error("failed to load active bookings for admin panel", zap.Error(err))
		return
	}
	stats, err := h.Lifecycle.MonthlyStats(c.Request.Context(), now)
	if err != nil {
		h.Logger.Error("failed to load monthly stats for admin panel", zap.Error(err))
		return
	}

	var lines []string
	lines = append(lines, "Admin panel")
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("Active bookings: %d", len(active)))
	lines = append(lines, fmt.Sprintf("This month: %d bookings, revenue %d", stats.Count, stats.Revenue))
	lines = append(lines, "")
	for _, b := range active {
		lines = append(lines, fmt.Sprintf("%s  %s – %s  %dx  %d",
			b.Status,
			b.StartDate.Format("02.01"), b.EndDate.Format("02.01"),
			b.Units, b.Price))
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, strings.Join(lines, "\n"))
	if _, err := h.Bot.Send(out); err != nil {
		h.Logger.Error("failed to send admin panel", zap.Error(err))
	}
}

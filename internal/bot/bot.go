// Package bot is the Telegram frontend of the quote store. Quotes are added
// by replying to a message, posted on request and voted on with reactions.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/graffic/clackquotes/internal/bot/middleware"
	"github.com/graffic/clackquotes/internal/quotes"
)

// Gateway is the part of quotes.Store the bot uses
type Gateway interface {
	CreateQuote(ctx context.Context, q quotes.NewQuote) (uuid.UUID, error)
	GetQuote(ctx context.Context, id string) (*quotes.Quote, error)
	GetRandomQuote(ctx context.Context) (*quotes.Quote, error)
	RecordMessage(ctx context.Context, messageID int64, quoteID string) error
	CastVote(ctx context.Context, b quotes.Ballot) (int, error)
}

// Sender sends chat messages. *tgbot.Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

var _ Sender = (*tgbot.Bot)(nil)

// Config holds the bot settings
type Config struct {
	Token          string
	AllowedChatIDs []int64
	AutoLeave      bool
	// QuotesChatID is the one chat whose posted quotes take votes. Telegram
	// message ids are only unique per chat. Zero disables voting.
	QuotesChatID int64
}

// Handler answers commands and reactions
type Handler struct {
	gw         Gateway
	renderer   *quotes.Renderer
	quotesChat int64
	logger     *slog.Logger
}

// NewHandler creates a new update handler. Only messages posted in
// quotesChat are recorded for voting.
func NewHandler(gw Gateway, quotesChat int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		gw:         gw,
		renderer:   quotes.NewRenderer(),
		quotesChat: quotesChat,
		logger:     logger,
	}
}

// Bot is a polling Telegram client wired to a Handler
type Bot struct {
	client *tgbot.Bot
	logger *slog.Logger
}

// New creates the Telegram client and registers the command handlers
func New(cfg Config, gw Gateway, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	h := NewHandler(gw, cfg.QuotesChatID, logger)

	opts := []tgbot.Option{
		tgbot.WithMiddlewares(middleware.ChatFilter(middleware.NewAllowlist(cfg.AllowedChatIDs), cfg.AutoLeave, logger)),
		tgbot.WithDefaultHandler(h.Default),
		// Reactions are only delivered when asked for explicitly
		tgbot.WithAllowedUpdates(tgbot.AllowedUpdates{"message", "message_reaction"}),
	}

	client, err := tgbot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	client.RegisterHandler(tgbot.HandlerTypeMessageText, "/rquote", tgbot.MatchTypePrefix, h.command("rquote", h.RQuote))
	client.RegisterHandler(tgbot.HandlerTypeMessageText, "/addquote", tgbot.MatchTypePrefix, h.command("addquote", h.AddQuote))

	return &Bot{client: client, logger: logger}, nil
}

// Run polls for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	me, err := b.client.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify Telegram token: %w", err)
	}

	b.logger.Info("starting bot polling", "username", me.Username)
	b.client.Start(ctx)
	return ctx.Err()
}

// command adapts a handler to the library signature and logs its errors
func (h *Handler) command(name string, fn func(context.Context, Sender, *models.Update) error) tgbot.HandlerFunc {
	return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
		if err := fn(ctx, b, update); err != nil {
			h.logger.Error("command handler error", "command", name, "error", err)
		}
	}
}

// Default handles updates no command matched. Reactions land here.
func (h *Handler) Default(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	if update.MessageReaction != nil {
		if err := h.Reaction(ctx, update.MessageReaction); err != nil {
			h.logger.Error("reaction handler error", "error", err)
		}
		return
	}

	if update.Message != nil {
		h.logger.Debug("received message", "chat_id", update.Message.Chat.ID)
	}
}

// userFrom maps a Telegram user to a quote store user. Telegram has no
// discriminator; the username is preferred over the display name.
// votesIn reports whether posts and reactions in chatID map to votes
func (h *Handler) votesIn(chatID int64) bool {
	return h.quotesChat != 0 && chatID == h.quotesChat
}

func userFrom(u *models.User) quotes.User {
	handle := u.Username
	if handle == "" {
		handle = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return quotes.User{ID: u.ID, Handle: handle}
}

func reply(ctx context.Context, s Sender, msg *models.Message, text string) error {
	_, err := s.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:          msg.Chat.ID,
		Text:            text,
		ReplyParameters: &models.ReplyParameters{MessageID: msg.ID},
	})
	return err
}

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/graffic/clackquotes/internal/quotes"
)

// RQuote posts a quote and records the posted message so reactions on it
// count as votes. "/rquote <id>" posts that quote, plain "/rquote" a random
// one.
func (h *Handler) RQuote(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	id := commandArgument(msg.Text)
	h.logger.Info("executing /rquote command", "chat_id", msg.Chat.ID, "quote_id", id)

	var (
		quote *quotes.Quote
		err   error
	)
	if id != "" {
		quote, err = h.gw.GetQuote(ctx, id)
	} else {
		quote, err = h.gw.GetRandomQuote(ctx)
	}
	switch {
	case errors.Is(err, quotes.ErrValidation):
		return reply(ctx, s, msg, "That is not a valid quote ID.")
	case errors.Is(err, quotes.ErrNotFound) && id != "":
		return reply(ctx, s, msg, "Quote not found.")
	case errors.Is(err, quotes.ErrNotFound):
		return reply(ctx, s, msg, "No quotes yet. Add some with /addquote!")
	case err != nil:
		return fmt.Errorf("failed to get quote: %w", err)
	}

	text, err := h.renderer.RenderSimple(quote)
	if err != nil {
		return fmt.Errorf("failed to render quote: %w", err)
	}

	sent, err := s.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: msg.Chat.ID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("failed to send quote: %w", err)
	}

	if !h.votesIn(msg.Chat.ID) {
		h.logger.Debug("not recording quote posted outside the quotes chat", "chat_id", msg.Chat.ID, "message_id", sent.ID)
		return nil
	}

	// A clash keeps the first association
	err = h.gw.RecordMessage(ctx, int64(sent.ID), quote.ID.String())
	if errors.Is(err, quotes.ErrConflict) {
		h.logger.Warn("message already associated with a quote", "message_id", sent.ID, "quote_id", quote.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to record posted quote: %w", err)
	}
	return nil
}

// AddQuote stores the replied-to message as a quote said by its author and
// added by the sender of the command
func (h *Handler) AddQuote(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	h.logger.Info("executing /addquote command", "chat_id", msg.Chat.ID)

	quoted := msg.ReplyToMessage
	if quoted == nil {
		return reply(ctx, s, msg, "Please reply to a message to add it as a quote.")
	}

	text := quoted.Text
	if text == "" {
		text = quoted.Caption
	}
	if strings.TrimSpace(text) == "" {
		return reply(ctx, s, msg, "Only text messages can be quoted.")
	}

	if quoted.From == nil || msg.From == nil {
		return reply(ctx, s, msg, "Could not tell who said that.")
	}

	id, err := h.gw.CreateQuote(ctx, quotes.NewQuote{
		SaidBy:  userFrom(quoted.From),
		AddedBy: userFrom(msg.From),
		Lines:   splitLines(text),
	})
	if errors.Is(err, quotes.ErrValidation) {
		return reply(ctx, s, msg, "Could not add that quote: "+err.Error())
	}
	if err != nil {
		return fmt.Errorf("failed to store quote: %w", err)
	}

	return reply(ctx, s, msg, fmt.Sprintf("Quote added! ID: %s", id))
}

// commandArgument returns the first word after the command, if any
func commandArgument(text string) string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// Package middleware provides bot middleware for filtering updates.
package middleware

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Allowlist is the set of chats the bot answers in. An empty list allows
// every chat.
type Allowlist struct {
	ids map[int64]struct{}
}

// NewAllowlist builds an allowlist from chat ids
func NewAllowlist(ids []int64) Allowlist {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Allowlist{ids: set}
}

// Allows reports whether updates from chatID should be handled
func (a Allowlist) Allows(chatID int64) bool {
	if len(a.ids) == 0 {
		return true
	}
	_, ok := a.ids[chatID]
	return ok
}

// ChatFilter drops updates from chats outside the allowlist. Updates that
// carry no chat are dropped too. With autoLeave the bot leaves chats it is
// not allowed in.
func ChatFilter(allow Allowlist, autoLeave bool, logger *slog.Logger) bot.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("chat filter", "allow_all", len(allow.ids) == 0, "auto_leave", autoLeave, "chats", len(allow.ids))

	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			chatID := ChatID(update)
			if chatID == 0 {
				return
			}

			if !allow.Allows(chatID) {
				logger.Info("ignoring update from unauthorized chat", "chat_id", chatID)
				if autoLeave && b != nil {
					if _, err := b.LeaveChat(ctx, &bot.LeaveChatParams{ChatID: chatID}); err != nil {
						logger.Error("failed to leave chat", "chat_id", chatID, "error", err)
					}
				}
				return
			}

			next(ctx, b, update)
		}
	}
}

// ChatID returns the chat an update belongs to, or 0 when it has none
func ChatID(update *models.Update) int64 {
	if update == nil {
		return 0
	}

	switch {
	case update.Message != nil:
		return update.Message.Chat.ID
	case update.EditedMessage != nil:
		return update.EditedMessage.Chat.ID
	case update.MessageReaction != nil:
		return update.MessageReaction.Chat.ID
	case update.MessageReactionCount != nil:
		return update.MessageReactionCount.Chat.ID
	case update.ChannelPost != nil:
		return update.ChannelPost.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.Message.Message != nil:
		return update.CallbackQuery.Message.Message.Chat.ID
	case update.MyChatMember != nil:
		return update.MyChatMember.Chat.ID
	default:
		return 0
	}
}

package bot

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/graffic/clackquotes/internal/quotes"
)

const (
	upvote   = "👍"
	downvote = "👎"
)

// Reaction turns a reaction change on a posted quote into a vote. Removing
// the reaction casts a zero vote.
func (h *Handler) Reaction(ctx context.Context, r *models.MessageReactionUpdated) error {
	if !h.votesIn(r.Chat.ID) {
		h.logger.Debug("ignoring reaction outside the quotes chat", "chat_id", r.Chat.ID, "message_id", r.MessageID)
		return nil
	}
	if r.User == nil {
		// Anonymous admins react as the chat
		h.logger.Debug("ignoring anonymous reaction", "chat_id", r.Chat.ID, "message_id", r.MessageID)
		return nil
	}

	stored, err := h.gw.CastVote(ctx, quotes.Ballot{
		MessageID: int64(r.MessageID),
		Voter:     userFrom(r.User),
		Vote:      reactionVote(r.NewReaction),
	})
	if errors.Is(err, quotes.ErrNotFound) {
		h.logger.Debug("reaction on a message that is not a quote", "chat_id", r.Chat.ID, "message_id", r.MessageID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cast vote: %w", err)
	}

	h.logger.Info("vote cast", "message_id", r.MessageID, "voter", r.User.ID, "vote", stored)
	return nil
}

// reactionVote reads the vote from the reactions now on the message
func reactionVote(reactions []models.ReactionType) int64 {
	for _, rt := range reactions {
		if rt.ReactionTypeEmoji == nil {
			continue
		}
		switch rt.ReactionTypeEmoji.Emoji {
		case upvote:
			return 1
		case downvote:
			return -1
		}
	}
	return 0
}

package quotes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotesIntegration_AddPostVoteDelete(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id, err := store.CreateQuote(ctx, NewQuote{
		SaidBy:  alice,
		AddedBy: bob,
		Lines:   []string{"hi", "bye"},
	})
	require.NoError(t, err)

	// The bot posts it and records the message it was posted as
	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))

	stored, err := store.CastVote(ctx, Ballot{MessageID: 1001, Voter: bob, Vote: 3})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	quote, err := store.GetRandomQuote(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, quote.ID)
	assert.Equal(t, []string{"hi", "bye"}, quote.Lines)
	assert.Equal(t, int64(1), quote.Score)

	rendered, err := NewRenderer().RenderSimple(quote)
	require.NoError(t, err)
	assert.Equal(t, "> hi\n> bye\n— Alice (added by Bob#0042)\nScore: +1", rendered)

	require.NoError(t, store.DeleteQuote(ctx, id.String()))

	_, err = store.GetQuote(ctx, id.String())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.GetRandomQuote(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQuotesIntegration_VoteOnHiddenQuote(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "gone but voted")
	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))
	require.NoError(t, store.DeleteQuote(ctx, id.String()))

	// Old messages stay votable after the quote is hidden
	_, err := store.CastVote(ctx, Ballot{MessageID: 1001, Voter: alice, Vote: -1})
	require.NoError(t, err)

	var vote QuoteVote
	require.NoError(t, db.DB.Where("quote_id = ?", id).Take(&vote).Error)
	assert.Equal(t, -1, vote.Vote)
}

func TestQuotesIntegration_ManyLines(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lines := make([]string, 200)
	for i := range lines {
		lines[i] = time.Duration(i).String()
	}

	id := createTestQuote(t, store, lines...)

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, lines, quote.Lines)
}

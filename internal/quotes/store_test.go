package quotes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/graffic/clackquotes/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *testutils.TestDB) {
	t.Helper()
	db := testutils.NewTestDB(t)
	return NewStore(db.DB, Config{QueryTimeout: 10 * time.Second}), db
}

// createTestQuote stores a quote by alice added by bob
func createTestQuote(t *testing.T, store *Store, lines ...string) uuid.UUID {
	t.Helper()
	id, err := store.CreateQuote(context.Background(), NewQuote{
		SaidBy:  alice,
		AddedBy: bob,
		Lines:   lines,
	})
	require.NoError(t, err)
	return id
}

func TestStore_ValidationNeedsNoDatabase(t *testing.T) {
	store := NewStore(nil, Config{})
	ctx := context.Background()

	err := store.UpsertUser(ctx, User{Handle: "nobody"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.GetUser(ctx, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.CreateQuote(ctx, NewQuote{SaidBy: alice, AddedBy: User{ID: 2}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.CreateQuote(ctx, NewQuote{SaidBy: alice, AddedBy: bob, Lines: []string{"a\x00b"}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.GetQuote(ctx, "nope")
	assert.ErrorIs(t, err, ErrValidation)

	err = store.DeleteQuote(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	err = store.RecordMessage(ctx, 0, uuid.NewString())
	assert.ErrorIs(t, err, ErrValidation)

	err = store.RecordMessage(ctx, 10, "nope")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.ResolveMessage(ctx, -1)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.CastVote(ctx, Ballot{MessageID: 0, Voter: alice, Vote: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.CastVote(ctx, Ballot{MessageID: 10, Voter: User{ID: 1}, Vote: 1})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestValidateUser(t *testing.T) {
	tests := []struct {
		name    string
		user    User
		wantErr bool
	}{
		{"valid", bob, false},
		{"negative id", User{ID: -100123, Handle: "group"}, false},
		{"max discriminator", User{ID: 3, Handle: "c", Discriminator: 9999}, false},
		{"zero id", User{Handle: "nobody"}, true},
		{"blank handle", User{ID: 3, Handle: "  "}, true},
		{"negative discriminator", User{ID: 3, Handle: "c", Discriminator: -1}, true},
		{"discriminator too large", User{ID: 3, Handle: "c", Discriminator: 10000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateUser("user", tt.user)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_UpsertUserKeepsLatest(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, User{ID: 7, Handle: "first", Discriminator: 1}))
	require.NoError(t, store.UpsertUser(ctx, User{ID: 7, Handle: "second", Discriminator: 2}))
	require.NoError(t, store.UpsertUser(ctx, User{ID: 7, Handle: "third", Discriminator: 3}))

	user, err := store.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, User{ID: 7, Handle: "third", Discriminator: 3}, *user)
}

func TestStore_GetUserNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetUser(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateAndGetQuote(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	lines := []string{"first", "second", "third", "fourth", "fifth"}
	id := createTestQuote(t, store, lines...)
	assert.NotEqual(t, uuid.Nil, id)

	quote, err := store.GetQuote(ctx, id.String())
	require.NoError(t, err)

	assert.Equal(t, id, quote.ID)
	assert.Equal(t, alice, quote.SaidBy)
	assert.Equal(t, bob, quote.AddedBy)
	assert.Equal(t, lines, quote.Lines)
	assert.Equal(t, int64(0), quote.Score)
	assert.WithinDuration(t, time.Now(), quote.AddedAt, time.Minute)
}

func TestStore_CreateQuoteStoresNumberedLines(t *testing.T) {
	store, db := newTestStore(t)

	id := createTestQuote(t, store, "a", "b", "c")

	var rows []QuoteLine
	require.NoError(t, db.DB.Where("id = ?", id).Order("line_number").Find(&rows).Error)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, i, row.LineNumber)
	}

	var meta QuoteMetadata
	require.NoError(t, db.DB.Where("id = ?", id).Take(&meta).Error)
	assert.True(t, meta.Visible)
	assert.Equal(t, alice.ID, meta.SaidBy)
	assert.Equal(t, bob.ID, meta.AddedBy)
}

func TestStore_GetQuoteOrdersByLineNumber(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store)
	// Insert out of order; line_number is the ordering key
	for _, row := range []QuoteLine{
		{QuoteID: id, LineNumber: 2, Line: "three"},
		{QuoteID: id, LineNumber: 0, Line: "one"},
		{QuoteID: id, LineNumber: 1, Line: "two"},
	} {
		require.NoError(t, db.DB.Create(&row).Error)
	}

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, quote.Lines)
}

func TestStore_CreateQuoteReflectsLatestUsers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "hello")

	renamed := User{ID: alice.ID, Handle: "Alicia", Discriminator: 5}
	require.NoError(t, store.UpsertUser(ctx, renamed))

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, renamed, quote.SaidBy)
}

func TestStore_CreateQuoteWithoutLines(t *testing.T) {
	store, _ := newTestStore(t)

	id := createTestQuote(t, store)

	quote, err := store.GetQuoteByID(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, quote.Lines)
	assert.NotNil(t, quote.Lines)
}

func TestStore_CreateQuoteIsAtomic(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	// A separate pool so the failing callback stays local to this test
	failing := db.Open(t)
	inserts := 0
	err := failing.Callback().Create().Before("gorm:create").Register("test:fail_second_line", func(tx *gorm.DB) {
		if tx.Statement.Table != "quote_content" {
			return
		}
		inserts++
		if inserts == 2 {
			tx.AddError(errors.New("injected failure"))
		}
	})
	require.NoError(t, err)

	failingStore := NewStore(failing, Config{})
	id, err := failingStore.CreateQuote(ctx, NewQuote{
		SaidBy:  alice,
		AddedBy: bob,
		Lines:   []string{"one", "two", "three"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, uuid.Nil, id)

	var metaCount, lineCount int64
	require.NoError(t, db.DB.Model(&QuoteMetadata{}).Count(&metaCount).Error)
	require.NoError(t, db.DB.Model(&QuoteLine{}).Count(&lineCount).Error)
	assert.Zero(t, metaCount)
	assert.Zero(t, lineCount)

	_, err = store.GetRandomQuote(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// The user upserts were rolled back with the quote
	_, err = store.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetQuoteNotFound(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetQuote(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestStore_DeleteQuote(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "soon gone")

	require.NoError(t, store.DeleteQuote(ctx, id.String()))

	_, err := store.GetQuote(ctx, id.String())
	assert.ErrorIs(t, err, ErrNotFound)

	// The row is still there, only hidden
	var meta QuoteMetadata
	require.NoError(t, db.DB.Where("id = ?", id).Take(&meta).Error)
	assert.False(t, meta.Visible)

	var lineCount int64
	require.NoError(t, db.DB.Model(&QuoteLine{}).Where("id = ?", id).Count(&lineCount).Error)
	assert.Equal(t, int64(1), lineCount)
}

func TestStore_DeleteQuoteTwiceReportsNotFound(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "x")

	require.NoError(t, store.DeleteQuote(ctx, id.String()))
	assert.ErrorIs(t, store.DeleteQuote(ctx, id.String()), ErrNotFound)
}

func TestStore_DeleteUnknownQuote(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.DeleteQuote(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetRandomQuote_NoQuotes(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.GetRandomQuote(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetRandomQuote_OnlyHidden(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := createTestQuote(t, store, "hidden")
		require.NoError(t, store.DeleteQuote(ctx, id.String()))
	}

	for i := 0; i < 20; i++ {
		_, err := store.GetRandomQuote(ctx)
		require.ErrorIs(t, err, ErrNotFound)
	}
}

func TestStore_GetRandomQuote_SkipsHidden(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	visible := createTestQuote(t, store, "visible")
	hidden := createTestQuote(t, store, "hidden")
	require.NoError(t, store.DeleteQuote(ctx, hidden.String()))

	for i := 0; i < 20; i++ {
		quote, err := store.GetRandomQuote(ctx)
		require.NoError(t, err)
		assert.Equal(t, visible, quote.ID)
	}
}

func TestStore_GetRandomQuote_ReachesEveryQuote(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	ids := map[uuid.UUID]bool{}
	for i := 0; i < 3; i++ {
		ids[createTestQuote(t, store, "quote")] = false
	}

	for i := 0; i < 100; i++ {
		quote, err := store.GetRandomQuote(ctx)
		require.NoError(t, err)
		_, known := ids[quote.ID]
		require.True(t, known)
		ids[quote.ID] = true
	}

	for id, seen := range ids {
		assert.True(t, seen, "quote %s never picked", id)
	}
}

func TestStore_RecordAndResolveMessage(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "posted")

	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))

	resolved, err := store.ResolveMessage(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, id, resolved)
}

func TestStore_RecordMessageTwiceConflicts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	first := createTestQuote(t, store, "first")
	second := createTestQuote(t, store, "second")

	require.NoError(t, store.RecordMessage(ctx, 1001, first.String()))

	err := store.RecordMessage(ctx, 1001, second.String())
	assert.ErrorIs(t, err, ErrConflict)

	err = store.RecordMessage(ctx, 1001, first.String())
	assert.ErrorIs(t, err, ErrConflict)

	resolved, err := store.ResolveMessage(ctx, 1001)
	require.NoError(t, err)
	assert.Equal(t, first, resolved)
}

func TestStore_RecordMessageForUnknownQuote(t *testing.T) {
	store, _ := newTestStore(t)

	err := store.RecordMessage(context.Background(), 1001, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ResolveUnknownMessage(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.ResolveMessage(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CastVoteClamps(t *testing.T) {
	tests := []struct {
		name      string
		vote      int64
		wantScore int64
	}{
		{name: "large upvote", vote: 500, wantScore: 1},
		{name: "large downvote", vote: -500, wantScore: -1},
		{name: "zero", vote: 0, wantScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _ := newTestStore(t)
			ctx := context.Background()

			id := createTestQuote(t, store, "vote on me")
			require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))

			stored, err := store.CastVote(ctx, Ballot{MessageID: 1001, Voter: alice, Vote: tt.vote})
			require.NoError(t, err)
			assert.Equal(t, int(tt.wantScore), stored)

			quote, err := store.GetQuoteByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, quote.Score)
		})
	}
}

func TestStore_CastVoteOverwrites(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "controversial")
	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))

	_, err := store.CastVote(ctx, Ballot{MessageID: 1001, Voter: alice, Vote: 1})
	require.NoError(t, err)
	_, err = store.CastVote(ctx, Ballot{MessageID: 1001, Voter: alice, Vote: -1})
	require.NoError(t, err)

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), quote.Score)

	var rows int64
	require.NoError(t, db.DB.Model(&QuoteVote{}).Where("quote_id = ?", id).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestStore_CastVoteSumsVoters(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "popular")
	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))
	require.NoError(t, store.RecordMessage(ctx, 1002, id.String()))

	carol := User{ID: 3, Handle: "Carol"}
	dave := User{ID: 4, Handle: "Dave"}

	for _, b := range []Ballot{
		{MessageID: 1001, Voter: alice, Vote: 1},
		{MessageID: 1001, Voter: bob, Vote: 1},
		{MessageID: 1002, Voter: carol, Vote: 3},
		{MessageID: 1002, Voter: dave, Vote: -1},
	} {
		_, err := store.CastVote(ctx, b)
		require.NoError(t, err)
	}

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(2), quote.Score)

	// Voters are upserted on the way
	user, err := store.GetUser(ctx, carol.ID)
	require.NoError(t, err)
	assert.Equal(t, carol, *user)
}

func TestStore_CastVoteUnknownMessage(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CastVote(context.Background(), Ballot{MessageID: 404, Voter: alice, Vote: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CastVoteConcurrentSameVoter(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	id := createTestQuote(t, store, "race")
	require.NoError(t, store.RecordMessage(ctx, 1001, id.String()))

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vote := int64(1)
			if i%2 == 0 {
				vote = -1
			}
			_, err := store.CastVote(ctx, Ballot{MessageID: 1001, Voter: alice, Vote: vote})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var rows int64
	require.NoError(t, db.DB.Model(&QuoteVote{}).Where("quote_id = ?", id).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	quote, err := store.GetQuoteByID(ctx, id)
	require.NoError(t, err)
	assert.Contains(t, []int64{-1, 1}, quote.Score)
}

func TestStore_CreateQuoteConcurrentSwappedUsers(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q := NewQuote{SaidBy: alice, AddedBy: bob, Lines: []string{"swap"}}
			if i%2 == 0 {
				q.SaidBy, q.AddedBy = bob, alice
			}
			_, err := store.CreateQuote(ctx, q)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	var rows int64
	require.NoError(t, db.DB.Model(&QuoteMetadata{}).Count(&rows).Error)
	assert.Equal(t, int64(20), rows)
}

func TestLockOrder(t *testing.T) {
	tests := []struct {
		name    string
		saidBy  User
		addedBy User
		want    []User
	}{
		{"ascending", alice, bob, []User{alice, bob}},
		{"swapped", bob, alice, []User{alice, bob}},
		{"same user keeps added_by", User{ID: 1, Handle: "Old"}, alice, []User{alice}},
		{"negative ids first", bob, User{ID: -5, Handle: "neg"}, []User{{ID: -5, Handle: "neg"}, bob}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, lockOrder(tt.saidBy, tt.addedBy))
		})
	}
}

func TestStore_GetRandomQuoteDuringDeletes(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	createTestQuote(t, store, "keeper")
	doomed := make([]uuid.UUID, 10)
	for i := range doomed {
		doomed[i] = createTestQuote(t, store, "doomed")
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(doomed)+50)
	for _, id := range doomed {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			errs <- store.DeleteQuote(ctx, id.String())
		}(id)
	}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.GetRandomQuote(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	// The keeper is always visible, so a pick never comes back empty
	for err := range errs {
		require.NoError(t, err)
	}

	quote, err := store.GetRandomQuote(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"keeper"}, quote.Lines)
}

func TestStore_QueryTimeoutIsPersistenceError(t *testing.T) {
	_, db := newTestStore(t)
	store := NewStore(db.DB, Config{QueryTimeout: time.Nanosecond})

	err := store.UpsertUser(context.Background(), alice)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.True(t, IsTimeout(err))
}

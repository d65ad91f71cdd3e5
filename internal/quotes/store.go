package quotes

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Config holds Store settings
type Config struct {
	// QueryTimeout bounds every Store operation. Zero means no bound
	// beyond the caller's context.
	QueryTimeout time.Duration
}

// Store is the storage gateway for users, quotes, message associations and
// votes. It keeps no state between calls; every operation borrows a
// connection from the gorm pool and returns it before returning.
type Store struct {
	db  *gorm.DB
	cfg Config
}

// NewStore creates a new quote store
func NewStore(db *gorm.DB, cfg Config) *Store {
	return &Store{db: db, cfg: cfg}
}

// session returns a handle bound to ctx and the configured timeout
func (s *Store) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	cancel := context.CancelFunc(func() {})
	if s.cfg.QueryTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
	}
	return s.db.WithContext(ctx), cancel
}

// UpsertUser inserts the user or updates handle and discriminator of an
// existing one
func (s *Store) UpsertUser(ctx context.Context, user User) error {
	if err := validateUser("user", user); err != nil {
		return err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	return classify("upsert user", upsertUser(db, user))
}

// GetUser returns the user with the given id
func (s *Store) GetUser(ctx context.Context, id int64) (*User, error) {
	if id == 0 {
		return nil, validationf("user id is required")
	}

	db, cancel := s.session(ctx)
	defer cancel()

	var user User
	if err := db.Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, classify(fmt.Sprintf("user %d", id), err)
	}
	return &user, nil
}

// CreateQuote stores a quote and returns its new id. Both users are
// upserted first. Users, metadata and every line are written in one
// transaction, so readers never see a quote with missing lines.
func (s *Store) CreateQuote(ctx context.Context, q NewQuote) (uuid.UUID, error) {
	if err := validateUser("said_by", q.SaidBy); err != nil {
		return uuid.Nil, err
	}
	if err := validateUser("added_by", q.AddedBy); err != nil {
		return uuid.Nil, err
	}
	for i, line := range q.Lines {
		// Postgres text cannot hold NUL
		if strings.ContainsRune(line, 0) {
			return uuid.Nil, validationf("quote line %d contains a NUL byte", i)
		}
	}

	db, cancel := s.session(ctx)
	defer cancel()

	id := uuid.New()
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, user := range lockOrder(q.SaidBy, q.AddedBy) {
			if err := upsertUser(tx, user); err != nil {
				return fmt.Errorf("failed to upsert user %d: %w", user.ID, err)
			}
		}

		// added_at and visible take their database defaults
		meta := QuoteMetadata{
			ID:      id,
			SaidBy:  q.SaidBy.ID,
			AddedBy: q.AddedBy.ID,
		}
		if err := tx.Omit(clause.Associations).Create(&meta).Error; err != nil {
			return fmt.Errorf("failed to create quote metadata: %w", err)
		}

		// Lines are numbered 0, 1, 2... in submitted order
		for i, line := range q.Lines {
			row := QuoteLine{
				QuoteID:    id,
				LineNumber: i,
				Line:       line,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("failed to create quote line %d: %w", i, err)
			}
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, classify("create quote", err)
	}

	return id, nil
}

// GetQuote returns the visible quote with the given text id
func (s *Store) GetQuote(ctx context.Context, id string) (*Quote, error) {
	quoteID, err := ParseID(id)
	if err != nil {
		return nil, err
	}
	return s.GetQuoteByID(ctx, quoteID)
}

// GetQuoteByID returns the visible quote with the given id, its lines in
// order and its score
func (s *Store) GetQuoteByID(ctx context.Context, id uuid.UUID) (*Quote, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	return getQuote(db, id)
}

// GetRandomQuote returns a visible quote picked uniformly at random. The
// pick and the read share one snapshot, so a concurrent delete cannot turn
// a successful pick into ErrNotFound.
func (s *Store) GetRandomQuote(ctx context.Context) (*Quote, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var quote *Quote
	err := db.Transaction(func(tx *gorm.DB) error {
		// Use random ordering - PostgreSQL specific
		var meta QuoteMetadata
		err := tx.Select("id").
			Where("visible = ?", true).
			Order("RANDOM()").
			Take(&meta).Error
		if err != nil {
			return err
		}

		quote, err = loadQuote(tx, meta.ID)
		return err
	}, snapshot)
	if err != nil {
		return nil, classify("random quote", err)
	}

	return quote, nil
}

// DeleteQuote hides a quote. The rows stay in place so the quote can be
// restored by hand. Deleting an already hidden quote reports ErrNotFound.
func (s *Store) DeleteQuote(ctx context.Context, id string) error {
	quoteID, err := ParseID(id)
	if err != nil {
		return err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	result := db.Model(&QuoteMetadata{}).
		Where("id = ? AND visible = ?", quoteID, true).
		Update("visible", false)
	if result.Error != nil {
		return classify("delete quote", result.Error)
	}
	if result.RowsAffected == 0 {
		return notFoundf("quote %s", quoteID)
	}
	return nil
}

// RecordMessage associates a posted message with a quote. A message id can
// only be associated once; a second attempt reports ErrConflict and leaves
// the first association in place.
func (s *Store) RecordMessage(ctx context.Context, messageID int64, quoteID string) error {
	if err := validateMessageID(messageID); err != nil {
		return err
	}
	id, err := ParseID(quoteID)
	if err != nil {
		return err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	msg := QuoteMessage{ID: messageID, QuoteID: id}
	if err := db.Create(&msg).Error; err != nil {
		return classify(fmt.Sprintf("record message %d", messageID), err)
	}
	return nil
}

// ResolveMessage returns the id of the quote posted as messageID
func (s *Store) ResolveMessage(ctx context.Context, messageID int64) (uuid.UUID, error) {
	if err := validateMessageID(messageID); err != nil {
		return uuid.Nil, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	return resolveMessage(db, messageID)
}

// CastVote records the voter's vote on the quote posted as the ballot's
// message and returns the stored, clamped value. A second vote by the same
// voter on the same quote replaces the first.
func (s *Store) CastVote(ctx context.Context, b Ballot) (int, error) {
	if err := validateMessageID(b.MessageID); err != nil {
		return 0, err
	}
	if err := validateUser("voter", b.Voter); err != nil {
		return 0, err
	}

	db, cancel := s.session(ctx)
	defer cancel()

	value := ClampVote(b.Vote)
	err := db.Transaction(func(tx *gorm.DB) error {
		quoteID, err := resolveMessage(tx, b.MessageID)
		if err != nil {
			return err
		}

		if err := upsertUser(tx, b.Voter); err != nil {
			return fmt.Errorf("failed to upsert voter: %w", err)
		}

		// The (quote_id, voter) unique constraint arbitrates concurrent votes
		vote := QuoteVote{QuoteID: quoteID, Voter: b.Voter.ID, Vote: value}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "quote_id"}, {Name: "voter"}},
			DoUpdates: clause.AssignmentColumns([]string{"vote"}),
		}).Create(&vote).Error
		if err != nil {
			return fmt.Errorf("failed to store vote: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, classify("cast vote", err)
	}

	return value, nil
}

// ClampVote reduces a raw vote to -1, 0 or 1
func ClampVote(raw int64) int {
	switch {
	case raw > 1:
		return 1
	case raw < -1:
		return -1
	default:
		return int(raw)
	}
}

// snapshot is the isolation used for reads that span several statements
var snapshot = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}

// getQuote assembles a visible quote from one snapshot
func getQuote(db *gorm.DB, id uuid.UUID) (*Quote, error) {
	var quote *Quote
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		quote, err = loadQuote(tx, id)
		return err
	}, snapshot)
	if err != nil {
		return nil, classify(fmt.Sprintf("quote %s", id), err)
	}
	return quote, nil
}

// loadQuote reads metadata, lines and score. Call it inside a snapshot
// transaction.
func loadQuote(tx *gorm.DB, id uuid.UUID) (*Quote, error) {
	var (
		meta  QuoteMetadata
		score int64
	)

	err := tx.Preload("SaidByUser").
		Preload("AddedByUser").
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("line_number ASC")
		}).
		Where("id = ? AND visible = ?", id, true).
		Take(&meta).Error
	if err != nil {
		return nil, err
	}

	err = tx.Model(&QuoteVote{}).
		Select("COALESCE(SUM(vote), 0)").
		Where("quote_id = ?", id).
		Scan(&score).Error
	if err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(meta.Lines))
	for _, l := range meta.Lines {
		lines = append(lines, l.Line)
	}

	return &Quote{
		ID:      meta.ID,
		SaidBy:  meta.SaidByUser,
		AddedBy: meta.AddedByUser,
		AddedAt: meta.AddedAt,
		Lines:   lines,
		Score:   score,
	}, nil
}

func resolveMessage(db *gorm.DB, messageID int64) (uuid.UUID, error) {
	var msg QuoteMessage
	if err := db.Where("id = ?", messageID).Take(&msg).Error; err != nil {
		return uuid.Nil, classify(fmt.Sprintf("message %d", messageID), err)
	}
	return msg.QuoteID, nil
}

// lockOrder returns the users to upsert in ascending id order, so
// transactions touching the same pair lock their rows in the same order.
// When both are the same user only the later one (added_by) is written.
func lockOrder(saidBy, addedBy User) []User {
	switch {
	case saidBy.ID == addedBy.ID:
		return []User{addedBy}
	case saidBy.ID < addedBy.ID:
		return []User{saidBy, addedBy}
	default:
		return []User{addedBy, saidBy}
	}
}

func upsertUser(db *gorm.DB, user User) error {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"handle", "discriminator"}),
	}).Create(&user).Error
}

func validateUser(field string, user User) error {
	switch {
	case user.ID == 0:
		return validationf("%s: id is required", field)
	case strings.TrimSpace(user.Handle) == "":
		return validationf("%s: handle is required", field)
	case user.Discriminator < 0 || user.Discriminator > 9999:
		return validationf("%s: discriminator %d out of range", field, user.Discriminator)
	}
	return nil
}

func validateMessageID(id int64) error {
	if id <= 0 {
		return validationf("message id must be positive, got %d", id)
	}
	return nil
}

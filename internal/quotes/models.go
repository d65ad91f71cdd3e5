package quotes

import (
	"time"

	"github.com/google/uuid"
)

// User is a chat platform user. The ID is issued by the platform, so the
// row is upserted rather than created.
type User struct {
	ID            int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Handle        string `gorm:"not null" json:"handle"`
	Discriminator int    `gorm:"not null" json:"discriminator"` // disambiguates identical handles
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "discord_user"
}

// Quote is a fully assembled, visible quote
type Quote struct {
	ID      uuid.UUID `json:"id"`
	SaidBy  User      `json:"said_by"`
	AddedBy User      `json:"added_by"`
	AddedAt time.Time `json:"added_at"`
	Lines   []string  `json:"quote"`
	Score   int64     `json:"score"`
}

// NewQuote is the input of CreateQuote
type NewQuote struct {
	SaidBy  User     `json:"said_by"`
	AddedBy User     `json:"added_by"`
	Lines   []string `json:"quote"`
}

// Ballot is a vote cast on the quote posted as MessageID. Vote is clamped
// to -1, 0 or 1 before it is stored.
type Ballot struct {
	MessageID int64
	Voter     User
	Vote      int64
}

// QuoteMetadata holds everything about a quote except its text
type QuoteMetadata struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	SaidBy  int64     `gorm:"not null"`
	AddedBy int64     `gorm:"not null"`
	AddedAt time.Time `gorm:"not null;default:now()"`
	Visible bool      `gorm:"not null;default:true"` // false means soft-deleted

	SaidByUser  User        `gorm:"foreignKey:SaidBy"`
	AddedByUser User        `gorm:"foreignKey:AddedBy"`
	Lines       []QuoteLine `gorm:"foreignKey:QuoteID"`
}

// TableName specifies the table name for QuoteMetadata
func (QuoteMetadata) TableName() string {
	return "quote_metadata"
}

// QuoteLine is one line of a quote. LineNumber is the ordering key.
type QuoteLine struct {
	QuoteID    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	LineNumber int       `gorm:"primaryKey;autoIncrement:false"`
	Line       string    `gorm:"not null"`
}

// TableName specifies the table name for QuoteLine
func (QuoteLine) TableName() string {
	return "quote_content"
}

// QuoteMessage records that a quote was posted as a chat message
type QuoteMessage struct {
	ID      int64     `gorm:"primaryKey;autoIncrement:false"` // platform message id
	QuoteID uuid.UUID `gorm:"type:uuid;not null"`
}

// TableName specifies the table name for QuoteMessage
func (QuoteMessage) TableName() string {
	return "quote_message"
}

// QuoteVote is one voter's vote on one quote
type QuoteVote struct {
	QuoteID uuid.UUID `gorm:"type:uuid;primaryKey"`
	Voter   int64     `gorm:"primaryKey;autoIncrement:false"`
	Vote    int       `gorm:"not null"`
}

// TableName specifies the table name for QuoteVote
func (QuoteVote) TableName() string {
	return "quote_vote"
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/graffic/clackquotes/internal/quotes"
)

// Handler serves the quote routes
type Handler struct {
	gw     Gateway
	logger *slog.Logger
}

// NewHandler creates a new quote route handler
func NewHandler(gw Gateway, logger *slog.Logger) *Handler {
	return &Handler{gw: gw, logger: logger}
}

// IDBody is returned when a quote is created
type IDBody struct {
	ID string `json:"id"`
}

// VoteBody is returned when a vote is stored
type VoteBody struct {
	Message string `json:"message"`
	Vote    int    `json:"vote"`
}

// voteRequest is the POST /vote payload. Older clients send the voter as
// "voter" instead of "voter_id".
type voteRequest struct {
	MessageID int64        `json:"message_id"`
	VoterID   *quotes.User `json:"voter_id"`
	Voter     *quotes.User `json:"voter"`
	Vote      json.Number  `json:"vote"`
}

// Hello answers GET / as a smoke test
func (h *Handler) Hello(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Hello World!"))
}

// AddQuote handles POST /addquote
func (h *Handler) AddQuote(w http.ResponseWriter, r *http.Request) {
	var req quotes.NewQuote
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid quote payload")
		return
	}

	id, err := h.gw.CreateQuote(r.Context(), req)
	if err != nil {
		gatewayError(w, h.logger, "create quote", err)
		return
	}

	h.logger.Info("quote added", "quote_id", id, "said_by", req.SaidBy.ID, "lines", len(req.Lines))
	JSONResponse(w, http.StatusCreated, IDBody{ID: id.String()})
}

// DelQuote handles GET /delquote?id=
func (h *Handler) DelQuote(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		ErrorResponse(w, http.StatusBadRequest, "Quote ID not supplied")
		return
	}

	if err := h.gw.DeleteQuote(r.Context(), id); err != nil {
		gatewayError(w, h.logger, "delete quote", err)
		return
	}

	h.logger.Info("quote deleted", "quote_id", id)
	JSONResponse(w, http.StatusOK, MessageBody{Message: "Success!"})
}

// GetQuote handles GET /getquote. Without an id a random quote is returned.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	var (
		quote *quotes.Quote
		err   error
	)

	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		quote, err = h.gw.GetQuote(r.Context(), id)
	} else {
		quote, err = h.gw.GetRandomQuote(r.Context())
	}
	if err != nil {
		gatewayError(w, h.logger, "get quote", err)
		return
	}

	JSONResponse(w, http.StatusOK, quote)
}

// AddVoteMessage handles GET /addvotemessage?message_id=&quote_id=
func (h *Handler) AddVoteMessage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	raw := strings.TrimSpace(q.Get("message_id"))
	if raw == "" {
		ErrorResponse(w, http.StatusBadRequest, "Message ID not supplied")
		return
	}
	messageID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Message ID must be an integer")
		return
	}

	quoteID := strings.TrimSpace(q.Get("quote_id"))
	if quoteID == "" {
		ErrorResponse(w, http.StatusBadRequest, "Quote ID not supplied")
		return
	}

	if err := h.gw.RecordMessage(r.Context(), messageID, quoteID); err != nil {
		gatewayError(w, h.logger, "record message", err)
		return
	}

	JSONResponse(w, http.StatusCreated, MessageBody{Message: "Success!"})
}

// Vote handles POST /vote
func (h *Handler) Vote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := ParseJSONBody(r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Ballot not supplied")
		return
	}

	if req.MessageID == 0 {
		ErrorResponse(w, http.StatusBadRequest, "Message ID not supplied")
		return
	}

	voter := req.VoterID
	if voter == nil {
		voter = req.Voter
	}
	if voter == nil {
		ErrorResponse(w, http.StatusBadRequest, "Voter ID not supplied")
		return
	}

	if req.Vote == "" {
		ErrorResponse(w, http.StatusBadRequest, "Vote not supplied")
		return
	}
	vote, err := parseVote(req.Vote)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Vote must be an integer")
		return
	}

	stored, err := h.gw.CastVote(r.Context(), quotes.Ballot{
		MessageID: req.MessageID,
		Voter:     *voter,
		Vote:      vote,
	})
	if err != nil {
		gatewayError(w, h.logger, "cast vote", err)
		return
	}

	JSONResponse(w, http.StatusCreated, VoteBody{Message: "Vote successful!", Vote: stored})
}

// parseVote reads an integer vote. Integers beyond int64 saturate by sign;
// the store clamps to -1..1 anyway.
func parseVote(n json.Number) (int64, error) {
	s := strings.TrimSpace(n.String())
	vote, err := strconv.ParseInt(s, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(s, "-") {
			return math.MinInt64, nil
		}
		return math.MaxInt64, nil
	}
	return vote, err
}

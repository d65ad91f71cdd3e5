package quotes

import (
	"fmt"
	"strings"
)

// Renderer formats quotes as chat text
type Renderer struct{}

// NewRenderer creates a new quote renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderOptions contains options for rendering a quote
type RenderOptions struct {
	Quote       *Quote
	IncludeID   bool
	IncludeDate bool
}

// RenderResult contains the rendered quote text and metadata
type RenderResult struct {
	Text      string
	LineCount int
}

// Render formats a quote as readable text: one "> " prefixed line per quote
// line, then the speaker and the score.
func (r *Renderer) Render(opts RenderOptions) (*RenderResult, error) {
	if opts.Quote == nil {
		return nil, fmt.Errorf("cannot render nil quote")
	}
	q := opts.Quote

	var b strings.Builder
	if opts.IncludeID {
		fmt.Fprintf(&b, "#%s\n", q.ID)
	}

	if len(q.Lines) == 0 {
		b.WriteString("> (no text)\n")
	}
	for _, line := range q.Lines {
		b.WriteString("> ")
		b.WriteString(line)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "— %s", DisplayName(q.SaidBy))
	if q.AddedBy.ID != q.SaidBy.ID {
		fmt.Fprintf(&b, " (added by %s)", DisplayName(q.AddedBy))
	}
	fmt.Fprintf(&b, "\nScore: %+d", q.Score)

	if opts.IncludeDate && !q.AddedAt.IsZero() {
		fmt.Fprintf(&b, "\n📅 %s", q.AddedAt.UTC().Format("2006-01-02 15:04"))
	}

	return &RenderResult{
		Text:      b.String(),
		LineCount: len(q.Lines),
	}, nil
}

// RenderSimple renders a quote without id or date
func (r *Renderer) RenderSimple(quote *Quote) (string, error) {
	result, err := r.Render(RenderOptions{Quote: quote})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// RenderWithDate renders a quote including its id and the date it was added
func (r *Renderer) RenderWithDate(quote *Quote) (string, error) {
	result, err := r.Render(RenderOptions{Quote: quote, IncludeID: true, IncludeDate: true})
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// DisplayName builds a display name from user info. A non-zero
// discriminator is appended as "#0042".
func DisplayName(u User) string {
	name := strings.TrimSpace(u.Handle)
	if name == "" {
		name = "Unknown"
	}
	if u.Discriminator > 0 {
		name = fmt.Sprintf("%s#%04d", name, u.Discriminator)
	}
	return name
}

package quotes

import (
	"strings"

	"github.com/google/uuid"
)

// ParseID parses the text form of a quote identifier. It is the only place
// external quote ids are turned into uuid.UUID.
func ParseID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, validationf("quote id is required")
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, validationf("malformed quote id %q", s)
	}
	return id, nil
}

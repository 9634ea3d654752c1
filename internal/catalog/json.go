package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/hay-kot/agenda/internal/core/schedule"
)

type jsonDocument struct {
	Sessions []json.RawMessage `json:"sessions"`
}

// LoadJSON reads a `{"sessions": [...]}` document. Entries that fail to
// decode or validate are logged and skipped.
func LoadJSON(r io.Reader, log zerolog.Logger) ([]schedule.Session, error) {
	var doc jsonDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	sessions := make([]schedule.Session, 0, len(doc.Sessions))
	for i, raw := range doc.Sessions {
		var s schedule.Session
		if err := json.Unmarshal(raw, &s); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping undecodable session")
			continue
		}
		if err := s.Validate(); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping invalid session")
			continue
		}
		sessions = append(sessions, s)
	}

	return sessions, nil
}

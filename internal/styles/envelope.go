package styles

import (
	"bytes"
	"encoding/json"
	"fmt"

	"studio/internal/domain"
)

// StorageKey is the single key the whole collection is stored under.
const StorageKey = "style_library"

// envelopeVersion tags the persisted layout.
const envelopeVersion = 1

type envelope struct {
	Version int                 `json:"version"`
	Styles  []domain.SavedStyle `json:"styles"`
}

func encodeCollection(styles []domain.SavedStyle) ([]byte, error) {
	if styles == nil {
		styles = []domain.SavedStyle{}
	}
	return json.Marshal(envelope{Version: envelopeVersion, Styles: styles})
}

// decodeCollection reads the envelope. Bare arrays written before the
// envelope existed are accepted as version 0.
func decodeCollection(data []byte) ([]domain.SavedStyle, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var legacy []domain.SavedStyle
		if err := json.Unmarshal(data, &legacy); err != nil {
			return nil, fmt.Errorf("decode legacy style list: %w", err)
		}
		return legacy, nil
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode style library: %w", err)
	}
	if env.Version > envelopeVersion {
		return nil, fmt.Errorf("style library version %d is newer than supported %d", env.Version, envelopeVersion)
	}
	return env.Styles, nil
}

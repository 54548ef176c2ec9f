package persistence

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/racelog/internal/model"
)

// Envelope is the export file layout from schema version 2 on.
type Envelope struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	DeviceID   string        `json:"deviceId"`
	DeviceName string        `json:"deviceName,omitempty"`
	RaceID     string        `json:"raceId,omitempty"`
	Entries    []model.Entry `json:"entries"`
	Faults     []model.Fault `json:"faults"`
}

// Export renders p as an indented export document tagged with the current
// schema version.
func Export(p model.Persisted, now time.Time) ([]byte, error) {
	env := Envelope{
		Version:    model.SchemaVersion,
		ExportedAt: now.UTC(),
		DeviceID:   p.DeviceID,
		DeviceName: p.DeviceName,
		RaceID:     p.RaceID,
		Entries:    orEmpty(p.Entries),
		Faults:     orEmpty(p.Faults),
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return data, nil
}

// Imported is a decoded export whose records are still untrusted.
type Imported struct {
	Version  int
	DeviceID string
	RaceID   string
	Entries  []json.RawMessage
	Faults   []json.RawMessage
}

// ImportErrorCode categorises import failures.
type ImportErrorCode string

const (
	// ImportMalformed indicates the document is not a readable export.
	ImportMalformed ImportErrorCode = "MALFORMED"
	// ImportUnsupportedVersion indicates an export from a newer schema.
	ImportUnsupportedVersion ImportErrorCode = "UNSUPPORTED_VERSION"
)

// ImportError is returned by DecodeExport.
type ImportError struct {
	Code    ImportErrorCode
	Message string
	Version int
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ImportError) Unwrap() error { return e.Err }

// IsImportError reports whether err is an ImportError with the given code.
// Uses errors.As to handle wrapped errors.
func IsImportError(err error, code ImportErrorCode) bool {
	var ie *ImportError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

// DecodeExport parses an export document. A bare JSON array is read as a
// version 1 export holding only entries.
func DecodeExport(data []byte) (Imported, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Imported{}, &ImportError{Code: ImportMalformed, Message: "empty document"}
	}

	if data[0] == '[' {
		var recs []json.RawMessage
		if err := json.Unmarshal(data, &recs); err != nil {
			return Imported{}, &ImportError{Code: ImportMalformed, Message: "invalid entry array", Err: err}
		}
		return Imported{Version: 1, Entries: recs}, nil
	}

	var doc struct {
		Version  *int              `json:"version"`
		DeviceID string            `json:"deviceId"`
		RaceID   string            `json:"raceId"`
		Entries  []json.RawMessage `json:"entries"`
		Faults   []json.RawMessage `json:"faults"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return Imported{}, &ImportError{Code: ImportMalformed, Message: "invalid export document", Err: err}
	}

	version := 1
	if doc.Version != nil {
		version = *doc.Version
	}
	switch {
	case version < 1:
		return Imported{}, &ImportError{
			Code:    ImportMalformed,
			Message: fmt.Sprintf("invalid version %d", version),
			Version: version,
		}
	case version > model.SchemaVersion:
		return Imported{}, &ImportError{
			Code:    ImportUnsupportedVersion,
			Message: fmt.Sprintf("export version %d is newer than supported version %d", version, model.SchemaVersion),
			Version: version,
		}
	}

	return Imported{
		Version:  version,
		DeviceID: doc.DeviceID,
		RaceID:   doc.RaceID,
		Entries:  doc.Entries,
		Faults:   doc.Faults,
	}, nil
}

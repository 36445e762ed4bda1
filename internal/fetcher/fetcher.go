package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"promo-scheduler/internal/promotion"
)

// ConfigFetcher retrieves and validates a promotion configuration.
type ConfigFetcher interface {
	FetchConfig(ctx context.Context) (promotion.Configuration, error)
}

// ErrInvalidResponse is returned for transport responses that are not a
// configuration document at all (bad status, not an object, no schemaVersion).
var ErrInvalidResponse = errors.New("invalid config response")

// DecodingError wraps a failure to decode a schema-valid document.
type DecodingError struct{ Err error }

func (e *DecodingError) Error() string { return "decode config: " + e.Err.Error() }
func (e *DecodingError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure.
type NetworkError struct{ Err error }

func (e *NetworkError) Error() string { return "fetch config: " + e.Err.Error() }
func (e *NetworkError) Unwrap() error { return e.Err }

// SchemaVersionMismatchError reports a document this build cannot ingest.
type SchemaVersionMismatchError struct {
	Received string
	Required string
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("schema version mismatch: received %q, required %q", e.Received, e.Required)
}

// Kind classifies a fetch error for metrics and logs.
func Kind(err error) string {
	var (
		dec *DecodingError
		net *NetworkError
		ver *SchemaVersionMismatchError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidResponse):
		return "invalid_response"
	case errors.As(err, &ver):
		return "schema_mismatch"
	case errors.As(err, &dec):
		return "decoding"
	case errors.As(err, &net):
		return "network"
	default:
		return "other"
	}
}

type format int

const (
	formatJSON format = iota
	formatYAML
)

// decode checks the schema version before decoding the whole document.
func decode(data []byte, f format, required string) (promotion.Configuration, error) {
	var (
		probe struct {
			SchemaVersion *string `json:"schemaVersion" yaml:"schemaVersion"`
		}
		cfg promotion.Configuration
		err error
	)

	if f == formatYAML {
		err = yaml.Unmarshal(data, &probe)
	} else {
		err = json.Unmarshal(data, &probe)
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if probe.SchemaVersion == nil {
		return cfg, fmt.Errorf("%w: missing schemaVersion", ErrInvalidResponse)
	}
	if required != "" && *probe.SchemaVersion != required {
		return cfg, &SchemaVersionMismatchError{Received: *probe.SchemaVersion, Required: required}
	}

	if f == formatYAML {
		err = yaml.Unmarshal(data, &cfg)
	} else {
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return promotion.Configuration{}, &DecodingError{Err: err}
	}
	return cfg, nil
}

package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/magadhlabs/lmsync/internal/model"
)

var whitespace = regexp.MustCompile(`\s+`)

// NormalizeClientID applies the canonical tenant-key form: trimmed,
// lowercased, runs of whitespace collapsed to hyphens.
func NormalizeClientID(id string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(id)), "-")
}

// ParseClientConfig strictly decodes a pasted TenantConfig document. Unknown
// fields, trailing garbage and structural violations are all rejected as
// ErrConfigParse; no heuristic repair is attempted.
func ParseClientConfig(raw []byte) (*model.TenantConfig, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var cfg model.TenantConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrConfigParse, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after document", model.ErrConfigParse)
	}

	if err := validateClientConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateClientConfig(cfg *model.TenantConfig) error {
	cfg.ClientID = NormalizeClientID(cfg.ClientID)
	if cfg.ClientID == "" {
		return fmt.Errorf("%w: clientId is required", model.ErrConfigParse)
	}
	if len(cfg.Halls) == 0 {
		return fmt.Errorf("%w: at least one hall is required", model.ErrConfigParse)
	}
	for i, hall := range cfg.Halls {
		if hall.Name == "" {
			return fmt.Errorf("%w: halls[%d] has no name", model.ErrConfigParse, i)
		}
		if hall.SeatCount <= 0 {
			return fmt.Errorf("%w: halls[%d] seat count must be positive", model.ErrConfigParse, i)
		}
	}
	if len(cfg.RemoteStore) > 0 && !json.Valid(cfg.RemoteStore) {
		return fmt.Errorf("%w: remoteStore is not valid JSON", model.ErrConfigParse)
	}
	return nil
}

package model

import (
	"encoding/json"
	"time"
)

// Theme holds the two brand colors applied to the presentation layer.
type Theme struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

// Hall is a physical room belonging to one tenant.
type Hall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SeatCount int    `json:"seatCount"`
}

// TenantConfig is one directory entry. The client ID is immutable once
// created; everything else is freely overwritten by the admin editor.
type TenantConfig struct {
	ClientID        string          `json:"clientId"`
	Name            string          `json:"name"`
	Theme           Theme           `json:"theme"`
	RemoteStore     json.RawMessage `json:"remoteStore"`
	Halls           []Hall          `json:"halls"`
	EnabledFeatures []string        `json:"enabledFeatures"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Title returns the document title shown for the tenant's session.
func (t *TenantConfig) Title() string {
	return t.Name + " - LMS"
}

// HasFeature reports whether a feature flag is enabled for the tenant.
func (t *TenantConfig) HasFeature(name string) bool {
	for _, f := range t.EnabledFeatures {
		if f == name {
			return true
		}
	}
	return false
}

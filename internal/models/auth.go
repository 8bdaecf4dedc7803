package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// AuthRequest is the body posted to the authentication endpoint
type AuthRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse represents an authentication response
type AuthResponse struct {
	Status   string     `json:"status,omitempty"`
	Token    string     `json:"token"`
	TenantID FlexString `json:"tenant_id,omitempty"`
	Message  string     `json:"message,omitempty"`
}

// Session holds the bearer token and tenant for a single run. It is never persisted.
type Session struct {
	Token    string
	TenantID string
}

// AuthorizationHeader returns the value for the Authorization header
func (s *Session) AuthorizationHeader() string {
	return "Bearer " + s.Token
}

// FlexString accepts either a JSON string or a JSON number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("tenant id must be a string or number: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

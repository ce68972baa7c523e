// Package token implements the JWT claims codec, issuance, and validation.
// It owns all golang-jwt usage; callers work with domain errors and the
// Claims type only.
package token

import (
	"encoding/json"

	"github.com/golang-jwt/jwt/v5"
)

// registeredClaimNames are the claim keys owned by the codec. Subject-supplied
// custom claims never override them.
var registeredClaimNames = []string{"iss", "sub", "aud", "exp", "nbf", "iat", "jti"}

// Claims is the JWT payload for access tokens. Custom holds subject-supplied
// claims flattened into the top level of the payload, so the wire format stays
// byte-compatible with standard JWT consumers.
type Claims struct {
	jwt.RegisteredClaims
	Custom map[string]any `json:"-"`
}

// MarshalJSON merges custom claims into the registered claim set.
// Registered claim names always win.
func (c Claims) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(c.RegisteredClaims)
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(base, &payload); err != nil {
		return nil, err
	}

	reserved := make(map[string]struct{}, len(registeredClaimNames))
	for _, name := range registeredClaimNames {
		reserved[name] = struct{}{}
	}

	for key, value := range c.Custom {
		if _, ok := reserved[key]; ok {
			continue
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		payload[key] = raw
	}

	return json.Marshal(payload)
}

// UnmarshalJSON splits the payload back into registered and custom claims.
func (c *Claims) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &c.RegisteredClaims); err != nil {
		return err
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	for _, name := range registeredClaimNames {
		delete(payload, name)
	}

	c.Custom = nil
	if len(payload) > 0 {
		c.Custom = payload
	}
	return nil
}

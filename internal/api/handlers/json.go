package handlers

import "encoding/json"

// bindJSON decodes raw into dest. Handlers that need the raw body for
// idempotency fingerprinting (see readBody) can't use gin's
// ShouldBindJSON, which consumes the request body reader directly.
func bindJSON(raw []byte, dest interface{}) error {
	return json.Unmarshal(raw, dest)
}

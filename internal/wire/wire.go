// Package wire defines the frames exchanged with a bulk-fetch upstream over
// a WebSocket connection.
//
// The client sends a FetchRequest and the upstream answers with one
// FetchResponse carrying the same ID. Results must be positionally aligned
// with the requested keys; a response-level Error means the whole call
// failed and no per-key results are available.
package wire

import (
	"encoding/json"
	"fmt"
)

// FetchRequest asks the upstream for the values of Keys in one call
type FetchRequest struct {
	ID   int64    `json:"id"`
	Keys []string `json:"keys"`
}

// NewFetchRequest creates a fetch request
func NewFetchRequest(id int64, keys []string) *FetchRequest {
	return &FetchRequest{
		ID:   id,
		Keys: keys,
	}
}

// KeyResult is the outcome for one key position.
// At most one of Value and Error is set.
type KeyResult struct {
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

// HasError returns true if this position failed
func (r *KeyResult) HasError() bool {
	return r.Error != ""
}

// FetchResponse answers a FetchRequest
type FetchResponse struct {
	ID      int64       `json:"id"`
	Results []KeyResult `json:"results,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HasError returns true if the whole call failed
func (r *FetchResponse) HasError() bool {
	return r.Error != ""
}

// NewFetchResponse creates a successful response
func NewFetchResponse(id int64, results []KeyResult) *FetchResponse {
	return &FetchResponse{
		ID:      id,
		Results: results,
	}
}

// NewErrorResponse creates a failed response
func NewErrorResponse(id int64, message string) *FetchResponse {
	return &FetchResponse{
		ID:    id,
		Error: message,
	}
}

// ParseRequest parses a fetch request from bytes
func ParseRequest(data []byte) (*FetchRequest, error) {
	var req FetchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid fetch request: %w", err)
	}
	return &req, nil
}

// ParseResponse parses a fetch response from bytes
func ParseResponse(data []byte) (*FetchResponse, error) {
	var resp FetchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("invalid fetch response: %w", err)
	}
	return &resp, nil
}

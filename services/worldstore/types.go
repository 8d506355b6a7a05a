package worldstore

import (
	"encoding/json"

	"github.com/R3E-Network/worldstore/internal/pagination"
)

// ValueRequest is the body of every PUT.
type ValueRequest struct {
	Value json.RawMessage `json:"value"`
}

// ValueResponse carries a single JSON value.
type ValueResponse struct {
	Value json.RawMessage `json:"value"`
}

// EnvValueResponse carries a decrypted env value.
type EnvValueResponse struct {
	Value string `json:"value"`
}

// Entry is one listed key. Value is a JSON document for world and player
// listings and a plaintext string for env listings.
type Entry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// ListResponse is the envelope of paginated listings.
type ListResponse struct {
	Data       any             `json:"data"`
	Pagination pagination.Page `json:"pagination"`
}

// UsageResponse reports the bytes used by a scope against its limit.
type UsageResponse struct {
	UsedBytes         int64 `json:"usedBytes"`
	MaxTotalSizeBytes int64 `json:"maxTotalSizeBytes"`
}

// DeleteAllResponse reports the number of rows removed by a bulk delete.
type DeleteAllResponse struct {
	Deleted int64 `json:"deleted"`
}

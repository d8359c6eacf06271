package model

import "time"

type BufferStatus string

const (
	StatusPending    BufferStatus = "pending"
	StatusProcessing BufferStatus = "processing"
	StatusCompleted  BufferStatus = "completed"
	StatusFailed     BufferStatus = "failed"
)

type BufferItemType string

const (
	BufferItemMemory      BufferItemType = "memory"
	BufferItemEntity      BufferItemType = "entity"
	BufferItemInteraction BufferItemType = "interaction"
)

// BufferItem is one unit of deferred side-effecting work. Once Status is
// completed, or failed with RetryCount == MaxRetries, the item is terminal.
type BufferItem struct {
	ID          string                 `json:"id"`
	Type        BufferItemType         `json:"type"`
	Data        map[string]interface{} `json:"data"`
	Status      BufferStatus           `json:"status"`
	Priority    int                    `json:"priority"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
	CreatedAt   time.Time              `json:"created_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Terminal reports whether the item can never be claimed again.
func (i BufferItem) Terminal() bool {
	return i.Status == StatusCompleted || i.Status == StatusFailed
}

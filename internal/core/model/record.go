package model

import "time"

type Source string

const (
	SourceLocal  Source = "local"
	SourceRemote Source = "remote"
)

// ContactRecord is one side's snapshot of a contact. Identity is Source+ID;
// records from different sources never share an ID, matching is always by inference.
type ContactRecord struct {
	ID        string                 `json:"id"`
	Source    Source                 `json:"source"`
	Name      string                 `json:"name"`
	Email     string                 `json:"email,omitempty"`
	Phone     string                 `json:"phone,omitempty"`
	Company   string                 `json:"company,omitempty"`
	UpdatedAt time.Time              `json:"updated_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Key returns the source-qualified identity of the record.
func (r ContactRecord) Key() string {
	return string(r.Source) + ":" + r.ID
}

package models

import "time"

const (
	SourceKindCSV = "csv"

	SourceStatusActive   = "active"
	SourceStatusInactive = "inactive"

	// ConfigKeyCSVPath is the config entry holding the file location for
	// kind=csv sources.
	ConfigKeyCSVPath = "csv_path"
)

type Source struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Kind      string    `json:"kind" db:"kind"`
	Config    JSONMap   `json:"config" db:"config"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Active reports whether new jobs may be started against the source.
func (s Source) Active() bool {
	return s.Status == SourceStatusActive
}

package model

// Streamer represents a re-streamer entry held by the console roster.
type Streamer struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	SourceURL   string `json:"sourceUrl"`
	Enabled     bool   `json:"enabled"`
	// PendingUpdate is client-local and never sent to the API.
	PendingUpdate bool `json:"pendingUpdate"`
}

// ServerStreamerRecord matches a single entry of the GET /api/streamers response.
type ServerStreamerRecord struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Key         bool   `json:"key"`
	Enabled     bool   `json:"enabled"`
}

// EnableRequest is the PATCH /api/streamers/{id} payload.
type EnableRequest struct {
	Enable bool `json:"enable"`
}

// RosterState is the read-only view published by the roster store.
type RosterState struct {
	Refreshing bool       `json:"refreshing"`
	Streamers  []Streamer `json:"streamers"`
}

// FromServerRecord maps a wire record into the client shape with no update pending.
func FromServerRecord(rec ServerStreamerRecord) Streamer {
	return Streamer{
		ID:            rec.ID,
		Description:   rec.Description,
		SourceURL:     rec.Source,
		Enabled:       rec.Enabled,
		PendingUpdate: false,
	}
}

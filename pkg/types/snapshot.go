package types

// RoomSnapshot is the read-only view of a room served by GET /stats.
type RoomSnapshot struct {
	ID        string         `json:"id"`
	Players   []string       `json:"players"`
	Current   string         `json:"current"` // player holding the turn
	HandSizes map[string]int `json:"hand_sizes"`
	DeckLeft  int            `json:"deck_left"`
}

// Stats is the body of GET /stats.
type Stats struct {
	Peers   int            `json:"peers"`
	Ready   []string       `json:"ready"`
	Rooms   []RoomSnapshot `json:"rooms"`
	Backlog int            `json:"backlog"`
}

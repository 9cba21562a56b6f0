package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotMessage announces a persisted snapshot to the export worker.
// Only the ID travels over the wire; the worker loads the full snapshot
// from the store.
type SnapshotMessage struct {
	SnapshotID int64     `json:"snapshot_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewSnapshotMessage creates a message for a freshly saved snapshot.
func NewSnapshotMessage(snapshotID int64) *SnapshotMessage {
	return &SnapshotMessage{
		SnapshotID: snapshotID,
		CreatedAt:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *SnapshotMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotMessageFromJSON creates a message from JSON bytes.
func SnapshotMessageFromJSON(data []byte) (*SnapshotMessage, error) {
	var msg SnapshotMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

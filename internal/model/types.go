package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type SystemRecord struct {
	VersionedRecord
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Bodies        []string `json:"bodies"`
	Variants      []string `json:"variants"`
	NumPositions  int      `json:"num_positions"`
	NumVelocities int      `json:"num_velocities"`
}

type RunRecord struct {
	VersionedRecord
	ID           string `json:"id"`
	System       string `json:"system"`
	Variant      string `json:"variant"`
	Epochs       int    `json:"epochs"`
	Seed         int64  `json:"seed"`
	Status       string `json:"status"`
	CreatedAtUTC string `json:"created_at_utc"`
}

// BodyEstimate holds the identified inertial parameters for one body.
// Moments are taken about the center of mass in the order
// ixx, iyy, izz, ixy, ixz, iyz.
type BodyEstimate struct {
	Body    string     `json:"body"`
	Mass    float64    `json:"mass"`
	CoM     [3]float64 `json:"com"`
	Moments [6]float64 `json:"moments"`
}

type EpochReport struct {
	VersionedRecord
	Epoch  int            `json:"epoch"`
	Loss   float64        `json:"loss"`
	Bodies []BodyEstimate `json:"bodies"`
}

type ExportRecord struct {
	VersionedRecord
	RunID string            `json:"run_id"`
	Epoch int               `json:"epoch"`
	URDFs map[string]string `json:"urdfs"`
}

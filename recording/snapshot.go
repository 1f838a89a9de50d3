// Package recording stores per-step snapshots of a physics run for later
// replay and inspection.
package recording

// SensorData is the recorded state of one proximity sensor.
type SensorData struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Angle    float64 `json:"angle"`
	Length   float64 `json:"length"`
	Distance float64 `json:"distance"`
	Value    float64 `json:"value"`
}

// CarData is the recorded state of one car at one step.
type CarData struct {
	ID       int          `json:"id"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Rotation float64      `json:"rotation"`
	Width    float64      `json:"width"`
	Height   float64      `json:"height"`
	Speed    float64      `json:"speed"`
	Fitness  float64      `json:"fitness"`
	Dead     bool         `json:"dead"`
	Sensors  []SensorData `json:"sensors,omitempty"`
}

// Snapshot holds every car's state at one step. A snapshot is never mutated
// after it is added to a Buffer.
type Snapshot struct {
	Step int       `json:"step"`
	Cars []CarData `json:"cars"`
}

// NewSnapshot creates a snapshot holding a deep copy of cars.
func NewSnapshot(step int, cars []CarData) *Snapshot {
	return &Snapshot{Step: step, Cars: copyCars(cars)}
}

func copyCars(cars []CarData) []CarData {
	out := make([]CarData, len(cars))
	for i, c := range cars {
		out[i] = c
		if c.Sensors != nil {
			out[i].Sensors = append([]SensorData(nil), c.Sensors...)
		}
	}
	return out
}

package neural

import (
	"fmt"

	"github.com/pthm-cable/laop/systems"
)

// IODescriptor describes a network input or output.
type IODescriptor struct {
	ID          string  // Unique identifier
	Label       string  // Display name
	Description string  // Extended description
	Min         float64 // Minimum value
	Max         float64 // Maximum value
	IsCentered  bool    // True for values centred on zero (e.g., -1 to +1)
	Group       string  // Logical grouping (e.g., "sensor", "self", "drive")
}

// InputDescriptors returns metadata for all network inputs, in the order the
// car builds its input vector.
func InputDescriptors() []IODescriptor {
	d := make([]IODescriptor, 0, NumInputs)
	for i := 0; i < systems.NumSensors; i++ {
		d = append(d, IODescriptor{
			ID:          fmt.Sprintf("sensor_%d", i),
			Label:       fmt.Sprintf("Sensor %d", i),
			Description: "Free distance along the ray / ray length (1 = clear)",
			Min:         0,
			Max:         1,
			Group:       "sensor",
		})
	}
	return append(d, IODescriptor{
		ID: "speed_norm", Label: "Speed", Description: "Current speed / terminal speed", Min: 0, Max: 1, Group: "self",
	})
}

// OutputDescriptors returns metadata for all network outputs.
func OutputDescriptors() []IODescriptor {
	return []IODescriptor{
		{ID: "acceleration", Label: "Accel", Description: "Throttle", Min: 0, Max: 1, Group: "drive"},
		{ID: "brake", Label: "Brake", Description: "Brake force against velocity", Min: 0, Max: 1, Group: "drive"},
		{ID: "steering", Label: "Steer", Description: "Steering, positive turns left", Min: -1, Max: 1, IsCentered: true, Group: "drive"},
	}
}

// InputLabels returns the input IDs in order.
func InputLabels() []string {
	return ids(InputDescriptors())
}

// OutputLabels returns the output IDs in order.
func OutputLabels() []string {
	return ids(OutputDescriptors())
}

func ids(d []IODescriptor) []string {
	out := make([]string, len(d))
	for i := range d {
		out[i] = d[i].ID
	}
	return out
}

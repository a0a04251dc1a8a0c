package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementDoorEvent = "door_events"
	MeasurementDoorbell  = "doorbell_presses"
)

// WriteDoorEvent records a completed door toggle.
//
// state is the new door state and actor the email of the user who
// triggered it. open is stored as 1 or 0 so dashboards can graph it.
func (c *Client) WriteDoorEvent(doorID, state, actor string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newDoorEventPoint(doorID, state, actor, time.Now()))
}

// WriteDoorbellPress records a doorbell press from the given source
// ("api" or "mqtt").
func (c *Client) WriteDoorbellPress(buttonID, source string) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newDoorbellPoint(buttonID, source, time.Now()))
}

func newDoorEventPoint(doorID, state, actor string, at time.Time) *write.Point {
	open := 0
	if state == "open" {
		open = 1
	}

	return write.NewPoint(
		MeasurementDoorEvent,
		map[string]string{
			"door_id": doorID,
			"state":   state,
		},
		map[string]interface{}{
			"open":  open,
			"actor": actor,
		},
		at,
	)
}

func newDoorbellPoint(buttonID, source string, at time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDoorbell,
		map[string]string{
			"button_id": buttonID,
			"source":    source,
		},
		map[string]interface{}{
			"pressed": 1,
		},
		at,
	)
}

// Package influxdb records door telemetry in InfluxDB v2.
//
// Two measurements are written:
//
//	door_events       tags door_id, state      fields open (0/1), actor
//	doorbell_presses  tags button_id, source   fields pressed
//
// Telemetry is optional. When influxdb.enabled is false Connect returns
// ErrDisabled and the Core runs without it.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteDoorEvent("front-door", "open", "ada@example.com")
package influxdb

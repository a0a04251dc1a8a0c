// Package door owns the single door: its persisted open/close state, the
// servo that moves it, and the doorbell.
//
// A toggle is serialised by a process-wide lock and persisted with a
// compare-and-swap on the previous state, so two concurrent requests can
// never both observe the same starting state. The servo is driven before
// the state is written; if the write fails the servo is driven back.
//
// After a successful toggle the service appends an audit line, informs
// change listeners (websocket, MQTT state, telemetry) and schedules a push
// notification. None of these can fail the toggle.
package door

// Package mqtt provides the broker connection used to drive the door servo,
// publish the retained door state and receive doorbell presses.
//
// Topic layout:
//
//	doorkeeper/command/servo/{door}    min | max       (not retained)
//	doorkeeper/state/door/{door}       {"state":...}   (retained)
//	doorkeeper/event/doorbell/{button} {"button":...}  (not retained)
//	doorkeeper/system/status           online/offline  (retained, LWT)
//
// The client reconnects with exponential backoff and restores its
// subscriptions after every reconnect.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.PublishCommand(mqtt.Topics{}.ServoCommand("front-door"), []byte(mqtt.ServoMax))
package mqtt

package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every Doorkeeper topic.
//
// Layout: doorkeeper/{category}/{kind}/{id}
const TopicPrefix = "doorkeeper"

// Servo positions understood by the door actuator firmware.
const (
	ServoMin = "min" // door closed
	ServoMax = "max" // door open
)

// Topics builds Doorkeeper MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.ServoCommand("front-door") // doorkeeper/command/servo/front-door
type Topics struct{}

// ServoCommand returns the topic the servo controller listens on.
//
// Example: doorkeeper/command/servo/front-door
func (Topics) ServoCommand(doorID string) string {
	return fmt.Sprintf("%s/command/servo/%s", TopicPrefix, doorID)
}

// DoorState returns the retained door state topic.
//
// Example: doorkeeper/state/door/front-door
func (Topics) DoorState(doorID string) string {
	return fmt.Sprintf("%s/state/door/%s", TopicPrefix, doorID)
}

// DoorbellEvent returns the topic a doorbell button publishes presses on.
//
// Example: doorkeeper/event/doorbell/porch
func (Topics) DoorbellEvent(buttonID string) string {
	return fmt.Sprintf("%s/event/doorbell/%s", TopicPrefix, buttonID)
}

// AllDoorbellEvents matches presses from every doorbell.
func (Topics) AllDoorbellEvents() string {
	return Topics{}.DoorbellEvent("+")
}

// SystemStatus returns the retained Core online/offline topic.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// LastSegment returns the final path element of a topic, typically the device ID.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

package door

import (
	"context"
	"fmt"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/mqtt"
)

// Actuator moves the physical door.
type Actuator interface {
	Drive(ctx context.Context, target State) error
}

// CommandPublisher is the part of the MQTT client the servo needs.
type CommandPublisher interface {
	PublishCommand(topic string, payload []byte) error
}

// ServoActuator drives the door servo over MQTT: "min" closes, "max" opens.
type ServoActuator struct {
	publisher CommandPublisher
	topic     string
}

// NewServoActuator creates an actuator for the door with the given device ID.
func NewServoActuator(publisher CommandPublisher, deviceID string) *ServoActuator {
	return &ServoActuator{
		publisher: publisher,
		topic:     mqtt.Topics{}.ServoCommand(deviceID),
	}
}

// Drive publishes the servo position for target.
func (a *ServoActuator) Drive(ctx context.Context, target State) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	position, err := ServoPosition(target)
	if err != nil {
		return err
	}

	if err := a.publisher.PublishCommand(a.topic, []byte(position)); err != nil {
		return fmt.Errorf("publishing servo command: %w", err)
	}
	return nil
}

// ServoPosition maps a door state onto a servo end stop.
func ServoPosition(s State) (string, error) {
	switch s {
	case Open:
		return mqtt.ServoMax, nil
	case Close:
		return mqtt.ServoMin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// NopActuator accepts every command. Used when no broker is configured.
type NopActuator struct{}

// Drive does nothing.
func (NopActuator) Drive(context.Context, State) error { return nil }

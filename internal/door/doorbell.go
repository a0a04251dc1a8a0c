package door

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/nerrad567/doorkeeper-core/internal/infrastructure/mqtt"
)

// ButtonPushed is the only accepted doorbell button value.
const ButtonPushed = "pushed"

// DoorbellMessage is the push notification text for a press.
const DoorbellMessage = "Someone is waiting for you at the door!"

// Doorbell sources.
const (
	SourceHTTP = "http"
	SourceMQTT = "mqtt"
)

// Press records one doorbell press.
type Press struct {
	ButtonID string    `json:"button_id"`
	Source   string    `json:"source"`
	At       time.Time `json:"at"`
}

// PressListener is informed of each accepted press.
type PressListener func(Press)

// Doorbell turns button presses into notifications.
type Doorbell struct {
	notifier  Notifier
	videoURL  string
	logger    *slog.Logger
	listeners []PressListener
}

// NewDoorbell creates a doorbell. videoURL, when set, is appended to the
// notification so the recipient can open the camera feed.
func NewDoorbell(notifier Notifier, videoURL string, logger *slog.Logger) *Doorbell {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Doorbell{notifier: notifier, videoURL: videoURL, logger: logger}
}

// OnPress registers a listener. Not safe to call once presses are flowing.
func (d *Doorbell) OnPress(fn PressListener) {
	d.listeners = append(d.listeners, fn)
}

// Message returns the notification text including the video link.
func (d *Doorbell) Message() string {
	if d.videoURL == "" {
		return DoorbellMessage
	}
	return DoorbellMessage + " " + d.videoURL
}

// Ring validates the button value and schedules the notification.
// Returns ErrInvalidButton for any value but "pushed".
func (d *Doorbell) Ring(button, buttonID, source string) error {
	if button != ButtonPushed {
		return ErrInvalidButton
	}

	press := Press{ButtonID: buttonID, Source: source, At: time.Now().UTC()}
	d.logger.Info("doorbell pressed", "button_id", buttonID, "source", source)

	if d.notifier != nil {
		d.notifier.Go(d.Message())
	}
	for _, fn := range d.listeners {
		fn(press)
	}
	return nil
}

// HandleMQTT processes a message from a doorbell topic. The payload is
// either the bare word "pushed" or {"button":"pushed"}; the button ID is
// the last topic segment.
func (d *Doorbell) HandleMQTT(topic string, payload []byte) error {
	buttonID := mqtt.LastSegment(topic)
	button := strings.TrimSpace(string(payload))
	if strings.HasPrefix(button, "{") {
		var body struct {
			Button string `json:"button"`
		}
		if err := json.Unmarshal(payload, &body); err != nil {
			d.logger.Warn("malformed doorbell payload", "topic", topic, "error", err)
			return ErrInvalidButton
		}
		button = body.Button
	}
	return d.Ring(button, buttonID, SourceMQTT)
}

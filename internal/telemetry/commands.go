package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/iotsim/internal/device"
	"github.com/nerrad567/iotsim/internal/infrastructure/mqtt"
)

// commandTimeout bounds the System call made for one command message.
const commandTimeout = 5 * time.Second

// Command actions accepted on iotsim/device/{slug}/set.
const (
	ActionOn           = "on"
	ActionOff          = "off"
	ActionToggle       = "toggle"
	ActionDetectMotion = "detect_motion"
	ActionRandomize    = "randomize"
	ActionSet          = "set"
)

// Controller is the part of automation.System commands act on.
type Controller interface {
	Devices() []device.Device
	TurnOn(ctx context.Context, id string) (device.Snapshot, error)
	TurnOff(ctx context.Context, id string) (device.Snapshot, error)
	Toggle(ctx context.Context, id string) (device.Snapshot, error)
	DetectMotion(ctx context.Context, id string) (device.Snapshot, error)
	RandomizeDevice(ctx context.Context, id string) (device.Delta, error)
	SetBrightness(ctx context.Context, id string, v int) (device.Snapshot, error)
	SetTemperature(ctx context.Context, id string, v float64) (device.Snapshot, error)
	SetSecurityStatus(ctx context.Context, id string, status device.SecurityStatus) (device.Snapshot, error)
}

// Command is the JSON body of a device command message.
//
//	{"action": "toggle"}
//	{"action": "set", "brightness": 40}
type Command struct {
	Action         string   `json:"action"`
	Brightness     *int     `json:"brightness,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	SecurityStatus *string  `json:"security_status,omitempty"`
}

// CommandHandler applies MQTT device commands to a Controller.
// Its Handle method is an mqtt.MessageHandler.
type CommandHandler struct {
	ctrl   Controller
	topics mqtt.Topics
	logger Logger
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(ctrl Controller, logger Logger) *CommandHandler {
	return &CommandHandler{ctrl: ctrl, logger: orNoop(logger)}
}

// Handle parses one message and applies it. Returned errors are logged by
// the MQTT client; the message is not retried.
func (h *CommandHandler) Handle(topic string, payload []byte) error {
	slug, ok := h.topics.DeviceSlug(topic)
	if !ok {
		return fmt.Errorf("%w: not a device topic: %s", device.ErrInvalidArgument, topic)
	}

	id, err := h.resolve(slug)
	if err != nil {
		return err
	}

	cmd, err := decodeCommand(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.apply(ctx, id, cmd); err != nil {
		return fmt.Errorf("device %q action %q: %w", id, cmd.Action, err)
	}
	h.logger.Debug("mqtt command applied", "device_id", id, "action", cmd.Action)
	return nil
}

// resolve maps a topic slug back to a device id.
func (h *CommandHandler) resolve(slug string) (string, error) {
	for _, d := range h.ctrl.Devices() {
		if device.TopicSlug(d.ID()) == slug {
			return d.ID(), nil
		}
	}
	return "", fmt.Errorf("%w: no device with slug %q", device.ErrDeviceNotFound, slug)
}

func decodeCommand(payload []byte) (Command, error) {
	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("%w: decoding command: %w", device.ErrInvalidArgument, err)
	}
	cmd.Action = strings.ToLower(strings.TrimSpace(cmd.Action))
	if cmd.Action == "" {
		cmd.Action = ActionSet
	}
	return cmd, nil
}

func (h *CommandHandler) apply(ctx context.Context, id string, cmd Command) error {
	var err error
	switch cmd.Action {
	case ActionOn:
		_, err = h.ctrl.TurnOn(ctx, id)
	case ActionOff:
		_, err = h.ctrl.TurnOff(ctx, id)
	case ActionToggle:
		_, err = h.ctrl.Toggle(ctx, id)
	case ActionDetectMotion:
		_, err = h.ctrl.DetectMotion(ctx, id)
	case ActionRandomize:
		_, err = h.ctrl.RandomizeDevice(ctx, id)
	case ActionSet:
		err = h.set(ctx, id, cmd)
	default:
		err = fmt.Errorf("%w: unknown action %q", device.ErrInvalidArgument, cmd.Action)
	}
	return err
}

func (h *CommandHandler) set(ctx context.Context, id string, cmd Command) error {
	switch {
	case cmd.Brightness != nil:
		_, err := h.ctrl.SetBrightness(ctx, id, *cmd.Brightness)
		return err
	case cmd.Temperature != nil:
		_, err := h.ctrl.SetTemperature(ctx, id, *cmd.Temperature)
		return err
	case cmd.SecurityStatus != nil:
		status, err := device.ParseSecurityStatus(*cmd.SecurityStatus)
		if err != nil {
			return err
		}
		_, err = h.ctrl.SetSecurityStatus(ctx, id, status)
		return err
	}
	return fmt.Errorf("%w: set needs brightness, temperature or security_status", device.ErrInvalidArgument)
}

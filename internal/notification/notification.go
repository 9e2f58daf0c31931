package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nafee3/nafee3/internal/logging"
)

// Channel is the out-of-band route a passcode travels on.
type Channel string

const (
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// ParseChannel validates a channel name; empty defaults to SMS.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToLower(strings.TrimSpace(s))) {
	case "", ChannelSMS:
		return ChannelSMS, nil
	case ChannelWhatsApp:
		return ChannelWhatsApp, nil
	default:
		return "", fmt.Errorf("unsupported channel %q", s)
	}
}

// Message describes a notification payload.
type Message struct {
	Channel     Channel
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"channel", string(message.Channel),
		"destination", logging.MaskPhone(message.Destination),
		"body", message.Body,
	)
	return nil
}

// PasscodeBody renders the text delivered with a passcode.
func PasscodeBody(code string) string {
	return fmt.Sprintf("رمز التحقق الخاص بك في نافع: %s", code)
}

// Package notifier delivers best-effort text messages to end users.
// Delivery errors are logged and never propagated to state transitions.
package notifier

import (
	"context"

	"telegram-auth/pkg/utils"

	"go.uber.org/zap"
)

// Notifier sends text to a chat endpoint.
type Notifier interface {
	Deliver(ctx context.Context, endpointID, text string)
}

// FallbackSender delivers an OTP to users without a linked chat endpoint.
type FallbackSender interface {
	SendOTP(ctx context.Context, phone, code string)
}

// LogNotifier only logs outgoing messages. Used when no bot token is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.With(zap.String("notifier", "log"))}
}

func (n *LogNotifier) Deliver(ctx context.Context, endpointID, text string) {
	n.log.Info("Message not delivered, no chat transport configured",
		zap.String("chat_id", endpointID),
		zap.Int("length", len(text)),
	)
}

// LogFallback is a placeholder for SMS delivery.
type LogFallback struct {
	log *zap.Logger
}

func NewLogFallback(log *zap.Logger) *LogFallback {
	return &LogFallback{log: log.With(zap.String("notifier", "sms_fallback"))}
}

func (f *LogFallback) SendOTP(ctx context.Context, phone, code string) {
	f.log.Warn("SMS fallback required", zap.String("phone", utils.MaskPhone(phone)))
	f.log.Debug("SMS fallback OTP", zap.String("phone", utils.MaskPhone(phone)), zap.String("otp_code", code))
}

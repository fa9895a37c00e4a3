package notificator

import (
	"runtime/debug"

	"github.com/anthroposcity/actgate/internal/models"
	"github.com/anthroposcity/actgate/pkg/logger"
)

// Notificator tells operators about new Publishers. Each channel is optional.
type Notificator struct {
	logger *logger.Logger

	TelegramNotificator *TelegramNotificator
	EmailNotificator    *EmailNotificator
}

func NewNotificator(logger *logger.Logger, telNotif *TelegramNotificator, emailNotif *EmailNotificator) *Notificator {
	return &Notificator{logger: logger, TelegramNotificator: telNotif, EmailNotificator: emailNotif}
}

// Enabled reports whether at least one channel is configured.
func (n *Notificator) Enabled() bool {
	return n.TelegramNotificator != nil || n.EmailNotificator != nil
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning)
func (n *Notificator) safeCall(fn func(), context string) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// SendNotification is called from its own goroutine by the gatekeeper.
func (n *Notificator) SendNotification(notification *models.Notification) {
	if !n.Enabled() {
		n.logger.Debug("No notification channel configured", "user_id", notification.UserID)
		return
	}

	message := notification.String()
	if n.TelegramNotificator != nil {
		n.safeCall(func() { n.TelegramNotificator.SendNotification(message) }, "telegramNotification")
	}
	if n.EmailNotificator != nil {
		n.safeCall(func() { n.EmailNotificator.SendNotification(message) }, "emailNotification")
	}
}

package models

import "fmt"

type NotificationService interface {
	SendNotification(notification *Notification)
}

// Notification announces a member's promotion to Publisher to the operators.
type Notification struct {
	UserID        string  `json:"user_id"`
	WalletAddress string  `json:"wallet_address"`
	USDValue      float64 `json:"usd_value"`
}

func (n *Notification) String() string {
	return fmt.Sprintf("user %s verified wallet %s holding $%.2f of ACT", n.UserID, n.WalletAddress, n.USDValue)
}

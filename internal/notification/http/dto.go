package http

import (
	"time"

	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/notification"
	"github.com/abinnihal/labflow-computer-lab-management-system-sub000/internal/pkg/request"
)

type ListNotificationsRequest struct {
	request.ListParams
	Unread bool `form:"unread"`
}

type NotificationResponse struct {
	ID        string     `json:"id"`
	SenderID  string     `json:"sender_id"`
	Recipient string     `json:"recipient"`
	Message   string     `json:"message"`
	Severity  string     `json:"severity"`
	BookingID string     `json:"booking_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
}

func NewNotificationResponse(n *notification.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		SenderID:  n.SenderID,
		Recipient: n.Recipient,
		Message:   n.Message,
		Severity:  string(n.Severity),
		BookingID: n.BookingID,
		CreatedAt: n.CreatedAt,
		ReadAt:    n.ReadAt,
	}
}

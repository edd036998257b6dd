package chat

import "time"

// Session names one widget conversation. It lives only in memory.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

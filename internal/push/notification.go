package push

import "encoding/json"

// Payload is the raw push message accepted from the ingest endpoint. Only
// Title and Body are required; everything else falls back to configured
// defaults.
type Payload struct {
	Title   string          `json:"title"`
	Body    string          `json:"body"`
	Icon    string          `json:"icon,omitempty"`
	URL     string          `json:"url,omitempty"`
	ID      int             `json:"id,omitempty"`
	Actions []Action        `json:"actions,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Action is one button on a displayed notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// NotificationData rides along with the notification so a click can be routed
// back to the right page.
type NotificationData struct {
	URL        string `json:"url"`
	PrimaryKey int    `json:"primaryKey"`
}

// Notification is the fully resolved notification delivered to windows and
// push subscribers.
type Notification struct {
	Title   string           `json:"title"`
	Body    string           `json:"body"`
	Icon    string           `json:"icon"`
	Badge   string           `json:"badge"`
	Vibrate []int            `json:"vibrate"`
	Data    NotificationData `json:"data"`
	Actions []Action         `json:"actions"`
}

func defaultActions() []Action {
	return []Action{
		{Action: "view", Title: "보기"},
		{Action: "close", Title: "닫기"},
	}
}

func defaultVibration() []int {
	return []int{200, 100, 200}
}

package models

// PushSubscription stores a browser push endpoint registered by a client.
// Key material is forwarded verbatim to the web-push library; it is never
// interpreted by the gateway itself.
type PushSubscription struct {
	BaseModel

	Endpoint string `gorm:"type:text;uniqueIndex:idx_push_endpoint,length:512;not null" json:"endpoint"`
	P256dh   string `gorm:"size:256;not null" json:"p256dh"`
	Auth     string `gorm:"size:256;not null" json:"auth"`
}

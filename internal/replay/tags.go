package replay

// Known sync tags. Each tag names a class of deferred work and holds at most
// one pending payload at a time.
const (
	// TagContactForm defers a contact-form submission body.
	TagContactForm = "sync-contact-form"
	// TagFailedRequest defers an arbitrary request as {url, method, header, body}.
	TagFailedRequest = "sync-failed-request"
	// TagAnalytics defers an analytics event batch.
	TagAnalytics = "sync-analytics"
)

// KnownTags lists every tag the coordinator will replay.
var KnownTags = []string{TagContactForm, TagFailedRequest, TagAnalytics}

// IsKnownTag reports whether the coordinator understands the supplied tag.
func IsKnownTag(tag string) bool {
	for _, known := range KnownTags {
		if tag == known {
			return true
		}
	}
	return false
}

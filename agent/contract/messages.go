package contract

// Sentences returned to the model (and eventually the user) in place of
// faults. They never carry error details.
const (
	MsgInvalidIdentifier = "I couldn't match one of the referenced items. Please check the name or link and try again."
	MsgUnavailable       = "That service is temporarily unavailable. Please try again later."
	MsgNotImplemented    = "This action is not available yet."
)

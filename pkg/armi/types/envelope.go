package types

// The four privileged type tags the dispatch hub recognizes. Every other
// Envelope.Type value is opaque application data routed through pub/sub.
const (
	TypeSubscriberRemote    = "SubscriberRemote"
	TypeSynchronousCall     = "SynchronousCall"
	TypeSynchronousResponse = "SynchronousResponse"
	TypeArmiException       = "ArmiException"
)

// CompressionIdentity is the only compression byte implementations must
// honor; any other value is rejected as corrupt until a future version
// defines it.
const CompressionIdentity byte = 0

// Envelope is the single framing unit on the wire: a required type tag, an
// optional flavor sub-category, a compression marker, and an opaque
// payload whose interpretation depends on Type.
type Envelope struct {
	Type        string
	Flavor      *string
	Compression byte
	Payload     []byte
}

// MatchesFlavor reports whether this envelope would be routed to a
// subscriber registered for the given flavor: an exact string match, or
// any flavor at all when the subscriber flavor is nil.
func (e Envelope) MatchesFlavor(flavor *string) bool {
	if flavor == nil {
		return true
	}
	return e.Flavor != nil && *e.Flavor == *flavor
}

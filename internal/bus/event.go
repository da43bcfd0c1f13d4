package bus

import "time"

// Event represents a domain event published on the bus.
//
// Kinds are dot-separated and namespaced by origin: "push." for inbound
// channel frames, "store." for entity store mutations, "conn." for channel
// connectivity, "poll." for scheduler nudges.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

package events

import "strings"

const (
	netPrefix         = "net:"
	internalNetPrefix = "internal-net:"
)

// Origin says where an event came from.
type Origin int

const (
	// OriginLocal events were raised inside this host.
	OriginLocal Origin = iota
	// OriginNetwork events arrived from a remote peer.
	OriginNetwork
	// OriginInternalNetwork events are network events relayed by the host
	// itself. They reach handlers of either scope.
	OriginInternalNetwork
)

func (o Origin) String() string {
	switch o {
	case OriginLocal:
		return "local"
	case OriginNetwork:
		return "net"
	case OriginInternalNetwork:
		return "internal-net"
	}
	return "unknown"
}

// Source identifies the sender of an event.
type Source struct {
	Origin Origin
	// Name is the sender with the origin prefix removed. It is empty for
	// local events.
	Name string
}

// ParseSource classifies the raw source string the host attaches to an
// event.
func ParseSource(raw string) Source {
	if name, ok := strings.CutPrefix(raw, internalNetPrefix); ok {
		return Source{Origin: OriginInternalNetwork, Name: name}
	}
	if name, ok := strings.CutPrefix(raw, netPrefix); ok {
		return Source{Origin: OriginNetwork, Name: name}
	}
	return Source{Origin: OriginLocal}
}

// Networked reports whether the event came over the network.
func (s Source) Networked() bool {
	return s.Origin != OriginLocal
}

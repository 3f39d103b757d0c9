package semantic

// Zone is a destination for a block.
type Zone string

const (
	ZoneContent Zone = "content"
	ZoneAction  Zone = "action"
	ZoneRemove  Zone = "remove"
	ZoneKeep    Zone = "keep"
)

// Thresholds of the classifier.
const (
	// MaxActionFormInputs is the largest non-login form relocated to the
	// action zone. Longer forms stay in place as primary content.
	MaxActionFormInputs = 5
	// MaxActionNavLinks is the largest menu relocated to the action zone.
	MaxActionNavLinks = 10
)

// Zones partitions blocks into four disjoint destinations.
type Zones struct {
	Content []Block
	Action  []Block
	Remove  []Block
	Keep    []Block
}

// All returns every block of the partition, zone by zone.
func (z Zones) All() []Block {
	out := make([]Block, 0, len(z.Content)+len(z.Action)+len(z.Remove)+len(z.Keep))
	out = append(out, z.Content...)
	out = append(out, z.Action...)
	out = append(out, z.Remove...)
	return append(out, z.Keep...)
}

// ZoneOf returns the destination of one block.
func ZoneOf(b Block) Zone {
	switch b.Kind {
	case Form:
		if b.Meta.HasLogin || b.Meta.InputCount <= MaxActionFormInputs {
			return ZoneAction
		}
		return ZoneKeep
	case Search, Action:
		return ZoneAction
	case Content:
		return ZoneContent
	case Navigation:
		if b.Meta.LinkCount <= MaxActionNavLinks {
			return ZoneAction
		}
		return ZoneKeep
	case Sidebar, Ad:
		return ZoneRemove
	}
	return ZoneKeep
}

// Classify routes each block to exactly one zone, preserving order within
// a zone.
func Classify(blocks []Block) Zones {
	var z Zones
	for _, b := range blocks {
		switch ZoneOf(b) {
		case ZoneContent:
			z.Content = append(z.Content, b)
		case ZoneAction:
			z.Action = append(z.Action, b)
		case ZoneRemove:
			z.Remove = append(z.Remove, b)
		default:
			z.Keep = append(z.Keep, b)
		}
	}
	return z
}

package block

// Side selects one of a tree node's two child links. Mirror-image rotation and
// fixup cases collapse into a single code path by indexing links with a Side
// and its Opposite.
type Side uint8

const (
	Left Side = iota
	Right
)

// The same two link slots double as the duplicate list's neighbor pointers
// while a block sits in a size's duplicate list rather than the tree proper.
const (
	Prev = Left
	Next = Right
)

func (s Side) Opposite() Side {
	return s ^ 1
}

func (s Side) String() string {
	if s == Right {
		return "right"
	}
	return "left"
}

// Package browse holds the index arithmetic behind sequential post browsing.
// It is shared by the API server and the client SDK.
package browse

// SwipeThreshold is the minimal horizontal travel, in pixels, that counts as
// a swipe.
const SwipeThreshold = 50.0

// Locate returns the position of target in ids. A target that is not present
// resolves to the first element with matched set to false. An empty list
// returns -1.
func Locate(ids []int64, target int64) (index int, matched bool) {
	if len(ids) == 0 {
		return -1, false
	}
	for i, id := range ids {
		if id == target {
			return i, true
		}
	}
	return 0, false
}

// Cursor is a position in a list of fixed length that never leaves
// [0, length-1]. There is no wraparound.
type Cursor struct {
	index  int
	length int
}

func NewCursor(length, index int) *Cursor {
	c := &Cursor{length: length}
	c.Set(index)
	return c
}

func (c *Cursor) Index() int { return c.index }
func (c *Cursor) Len() int   { return c.length }

// Valid reports whether the cursor points into a non-empty list.
func (c *Cursor) Valid() bool { return c.length > 0 }

func (c *Cursor) HasPrev() bool { return c.length > 0 && c.index > 0 }
func (c *Cursor) HasNext() bool { return c.length > 0 && c.index < c.length-1 }

// Prev moves one step back and reports whether the index changed.
func (c *Cursor) Prev() bool {
	if !c.HasPrev() {
		return false
	}
	c.index--
	return true
}

// Next moves one step forward and reports whether the index changed.
func (c *Cursor) Next() bool {
	if !c.HasNext() {
		return false
	}
	c.index++
	return true
}

// Set moves to i, clamped into range.
func (c *Cursor) Set(i int) {
	switch {
	case c.length <= 0:
		c.index = 0
	case i < 0:
		c.index = 0
	case i >= c.length:
		c.index = c.length - 1
	default:
		c.index = i
	}
}

type Direction int

const (
	None Direction = iota
	Backward
	Forward
)

// FromKey maps keyboard keys to a direction.
func FromKey(key string) Direction {
	switch key {
	case "ArrowLeft":
		return Backward
	case "ArrowRight":
		return Forward
	}
	return None
}

// FromSwipe maps the horizontal travel of a touch gesture to a direction:
// dragging left shows the next post, dragging right the previous one.
func FromSwipe(dx float64) Direction {
	switch {
	case dx <= -SwipeThreshold:
		return Forward
	case dx >= SwipeThreshold:
		return Backward
	}
	return None
}

// Apply moves the cursor in direction d and reports whether it moved.
func (c *Cursor) Apply(d Direction) bool {
	switch d {
	case Backward:
		return c.Prev()
	case Forward:
		return c.Next()
	}
	return false
}

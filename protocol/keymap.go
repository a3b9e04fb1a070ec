package protocol

// Matrix geometry shared by the keypad and the VMC bus
const (
	Columns = 3
	Rows    = 7
	Keys    = Columns * Rows
)

// Keymap maps a (column, row) matrix coordinate to the character that
// represents it on the wire.
type Keymap [Columns][Rows]byte

// KeypadLayout is the physical keypad wiring. The scanner reports presses
// with it and, by default, the decoder addresses the bus with it too.
var KeypadLayout = Keymap{
	{'2', '4', '6', '8', '0', 'h', 'l'},
	{'1', '3', '5', '7', '9', 'g', 'k'},
	{'a', 'b', 'c', 'd', 'e', 'f', 'j'},
}

// RotatedLayout returns k turned by 180 degrees: column c, row r of the
// result is column 2-c, row 6-r of k. Harnesses that wire the VMC connector
// upside down relative to the keypad need this for the bus side.
func (k *Keymap) Rotated() Keymap {
	var out Keymap
	for c := 0; c < Columns; c++ {
		for r := 0; r < Rows; r++ {
			out[c][r] = k[Columns-1-c][Rows-1-r]
		}
	}
	return out
}

// Lookup returns the character at (col, row), or 0 if out of range
func (k *Keymap) Lookup(col, row uint8) byte {
	if col >= Columns || row >= Rows {
		return 0
	}
	return k[col][row]
}

// Locate reverse-maps a character to its coordinate
func (k *Keymap) Locate(b byte) (col, row uint8, ok bool) {
	if b == 0 {
		return 0, 0, false
	}
	for c := uint8(0); c < Columns; c++ {
		for r := uint8(0); r < Rows; r++ {
			if k[c][r] == b {
				return c, r, true
			}
		}
	}
	return 0, 0, false
}

// Contains reports whether b is a key character of k
func (k *Keymap) Contains(b byte) bool {
	_, _, ok := k.Locate(b)
	return ok
}

// Package decode turns raw 12-bit readout words into signed levels, and
// analog pixel words into pixel addresses.
package decode

const (
	wordMask = 0x0fff
	signBit  = 0x0800
)

// Decode sign-extends the low 12 bits of w. Upper bits carry transport tags
// and are dropped.
func Decode(w uint16) int {
	m := int(w & wordMask)
	if m&signBit != 0 {
		return m - 4096
	}
	return m
}

// Convert decodes every word of a raw event, keeping length and order.
func Convert(raw []uint16) []int {
	ev := make([]int, len(raw))
	for i, w := range raw {
		ev[i] = Decode(w)
	}
	return ev
}

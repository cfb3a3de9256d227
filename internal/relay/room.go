package relay

import "strconv"

// RoomName derives the canonical room for a conversation between two
// users: the pair sorted ascending, rendered in decimal and joined with
// a dash. Both participants compute the same name regardless of
// argument order.
func RoomName(userId1, userId2 int) string {
	a, b := userId1, userId2
	if a > b {
		a, b = b, a
	}

	return strconv.Itoa(a) + "-" + strconv.Itoa(b)
}

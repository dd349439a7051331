package demux

import "fmt"

// ubxNames maps class/id pairs to readable names for the message types the
// station cares about. Unlisted pairs fall back to hex.
var ubxNames = map[[2]byte]string{
	{0x01, 0x04}: "NAV-DOP",
	{0x01, 0x07}: "NAV-PVT",
	{0x01, 0x20}: "NAV-TIMEGPS",
	{0x01, 0x21}: "NAV-TIMEUTC",
	{0x01, 0x22}: "NAV-CLOCK",
	{0x01, 0x35}: "NAV-SAT",
	{0x02, 0x13}: "RXM-SFRBX",
	{0x02, 0x15}: "RXM-RAWX",
	{0x02, 0x59}: "RXM-MEASX",
	{0x06, 0x00}: "CFG-PRT",
	{0x06, 0x01}: "CFG-MSG",
	{0x0A, 0x04}: "MON-VER",
	{0x0A, 0x09}: "MON-HW",
	{0x0A, 0x0B}: "MON-HW2",
	{0x0A, 0x28}: "MON-RF",
}

// MessageName returns a readable name for a UBX class/id pair,
// e.g. "RXM-RAWX" or "0x05/0x01" for unknown pairs.
func MessageName(class, id byte) string {
	if name, ok := ubxNames[[2]byte{class, id}]; ok {
		return name
	}
	return fmt.Sprintf("0x%02X/0x%02X", class, id)
}

// Package demux extracts complete, checksum-validated frames from the raw
// byte stream of a u-blox receiver.
//
// Two protocols share the wire: UBX binary messages (0xB5 0x62 sync, little-
// endian length header, 8-bit Fletcher checksum) and NMEA 0183 sentences
// ("$...*hh" with an XOR checksum). The demultiplexer scans for either sync
// marker, validates candidates, and emits frames in wire order. Corrupt or
// oversized candidates are rejected with an explicit reason and scanning
// resumes a byte at a time, so a single corrupt length field can never
// desynchronize the stream indefinitely.
//
// The package is pure: it performs no I/O and never logs. Rejections are
// returned as values for the caller to report.
package demux

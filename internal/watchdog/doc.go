// Package watchdog implements the out-of-band health monitor for the
// ingestion daemon.
//
// The daemon cannot reliably detect its own parser desync: a receiver
// stuck at the wrong baud rate keeps the process alive and busy while
// every frame is rejected. The watchdog therefore runs as a separate
// binary on a systemd timer, reads the daemon's diagnostic log, and
// counts occurrences of the desync signature inside a trailing window.
// Past a threshold it restarts the service unit over the systemd D-Bus
// API and verifies the unit came back active.
//
// A second pass, [Recoverer], handles the aftermath of network outages:
// it probes the collector endpoint and, only when the network is
// reachable again, restarts any unit left in the failed state. Gating
// on reachability avoids restart storms while the real fault is the
// uplink rather than the parser.
//
// The watchdog owns no pipeline state. It reads append-only logs and
// issues exactly two kinds of commands: restart and is-active.
package watchdog

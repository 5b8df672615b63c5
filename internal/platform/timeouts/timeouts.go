// Package timeouts defines shared timeout constants used across commands.
package timeouts

import "time"

// GRPCDial caps the wait time when dialing a gRPC peer.
const GRPCDial = 2 * time.Second

// Shutdown limits how long the gRPC server waits for in-flight requests
// during graceful shutdown before forcing a stop.
const Shutdown = 5 * time.Second

// StorageOpen caps the initial database open and migration run.
const StorageOpen = 10 * time.Second

// EventPublish bounds how long a committed write waits on slow event
// subscribers before they are evicted.
const EventPublish = 250 * time.Millisecond

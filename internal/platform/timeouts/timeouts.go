// Package timeouts defines shared timeout constants used across narrator
// processes so HTTP, storage and upstream calls agree on their limits.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second

// StoreWrite caps a single durable write of the campaign document.
const StoreWrite = 5 * time.Second

// Backup caps one upload of the campaign document to the backup target.
const Backup = 30 * time.Second

// Media caps a single image or speech generation request.
const Media = 90 * time.Second

package constants

import (
	"io/fs"
	"time"
)

const (
	// DefaultDirPerm is the default permission used when creating directories.
	DefaultDirPerm fs.FileMode = 0o755
	// DefaultFilePerm is the default permission used when creating files.
	DefaultFilePerm fs.FileMode = 0o644
)

const (
	// DefaultConcurrency caps how many domains may be probed at the same time.
	DefaultConcurrency = 20
	// DefaultTick is the scheduler wake-up cadence; per-owner intervals are
	// rounded up to the next tick boundary, never checked early.
	DefaultTick = 60 * time.Second
	// DefaultDNSTimeout bounds each DNS lookup.
	DefaultDNSTimeout = 5 * time.Second
	// DefaultWAFTimeout bounds each WAF probe request.
	DefaultWAFTimeout = 6 * time.Second
	// DefaultTLSTimeout bounds the TLS handshake and the GOST sidecar call.
	DefaultTLSTimeout = 10 * time.Second
)

//go:build cgo

package store

// The libsql driver requires cgo; registering it only in cgo builds keeps
// the rest of the package compilable with CGO_ENABLED=0.
import _ "github.com/tursodatabase/go-libsql"

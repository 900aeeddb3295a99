//go:build cgo

package store

// go-libsql is a cgo library; it registers the "libsql" database/sql driver.
import _ "github.com/tursodatabase/go-libsql"

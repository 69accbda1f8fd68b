// Package source fetches and decodes the separated stems of a session,
// either from a stem server or from a local directory of separation
// output.
package source

import (
	"context"
	"errors"
)

// ErrAbsent reports that a stem does not exist for the session. This is
// a valid outcome, not a failure: sessions routinely lack some stems
// (four-stem separations have no guitar or piano).
var ErrAbsent = errors.New("stem absent")

// stemExts are tried in order when locating a stem asset.
var stemExts = []string{".mp3", ".wav", ".ogg", ".flac"}

// A Source locates the raw bytes of one stem. Implementations return
// ErrAbsent when the stem simply does not exist.
type Source interface {
	Fetch(ctx context.Context, session, name string) (data []byte, ext string, err error)
}

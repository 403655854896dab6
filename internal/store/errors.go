package store

import "errors"

// ErrNotFound is returned by Tx lookups when the requested row does not
// exist. Callers either translate it into an engineerr kind (NotFound for a
// missing table or user, InvalidState for a missing active game,
// DeviceMisconfigured for an unknown scanner) or treat it as "none yet".
var ErrNotFound = errors.New("store: not found")

package domain

import "errors"

// ErrDuplicate signals a uniqueness violation on insert: another run
// already persisted the same (platform, external_id) pair or report
// date. Drivers treat it as a logged skip, never as a fatal failure.
var ErrDuplicate = errors.New("record already exists")

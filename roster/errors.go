package roster

import "errors"

// ErrNotReady reports that the roster has not completed a fetch. No function
// in this package returns it: GetContact and AllContacts on an unfetched
// roster report an empty cache instead.
var ErrNotReady = errors.New("roster: not ready")

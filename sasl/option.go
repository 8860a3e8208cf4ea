package sasl

// Option configures an Authenticator at construction time, the same
// functional-options idiom used by porter.Option and the teacher's
// mux.Option.
type Option func(*Authenticator)

// WithIdentity sets the SASL authzid used when a client wants to act on
// behalf of another user. Normally left unset.
func WithIdentity(identity string) Option {
	return func(a *Authenticator) {
		a.identity = identity
	}
}

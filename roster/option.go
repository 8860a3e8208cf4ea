package roster

import "github.com/Thaodan/wocky/jid"

// Option configures a Roster at construction time, the same functional-
// options idiom as porter.Option and sasl.Option.
type Option func(*Roster)

// WithAccountJID pins the roster's push authorization to a single account
// bare JID, rejecting from-less pushes too. Without this option, the
// baseline push-handling contract still applies unconditionally: a push is
// accepted only from the bare JID the underlying porter was constructed
// with (via porter.WithLocalJID) or from a from-less stanza. WithAccountJID
// is for tightening that baseline further, not for obtaining it.
func WithAccountJID(j jid.JID) Option {
	return func(r *Roster) {
		bare := j.Bare()
		r.accountJID = &bare
	}
}

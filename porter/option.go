package porter

import (
	"log"

	"github.com/Thaodan/wocky/jid"
)

// Option configures a Porter at construction time, the same functional-
// options idiom the teacher uses for mux.Option.
type Option func(*Porter)

// WithLogger sets the logger used for the single observable debug point
// spec calls out: a stanza that no handler claims. A nil logger is
// ignored; the default is a discard logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Porter) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLocalJID tells the porter the account's own JID, used by the IQ
// spoof check when an outbound IQ omitted `to`: replies from no JID, the
// account's bare JID, or the account's full JID are then accepted.
// Without this option, only replies with no `from` are accepted in that
// case.
func WithLocalJID(j jid.JID) Option {
	return func(p *Porter) {
		p.localJID = &j
	}
}

package sasl

import "errors"

var (
	// ErrNoSupportedMechanisms is returned when the server-offered and
	// client-implemented mechanism sets (after the cleartext policy gate)
	// have no mechanism in common.
	ErrNoSupportedMechanisms = errors.New("sasl: no supported mechanisms")
	// ErrSaslNotSupported is returned when the stream features carry no
	// <mechanisms> element at all.
	ErrSaslNotSupported = errors.New("sasl: server does not support SASL")
	// ErrInvalidReply is returned when a DIGEST-MD5 rspauth fails mutual
	// authentication, or a reply is malformed for the active mechanism.
	ErrInvalidReply = errors.New("sasl: invalid server reply")
	// ErrConnectionLost is returned when the underlying connection fails
	// mid-negotiation.
	ErrConnectionLost = errors.New("sasl: connection lost")
)

// ServerFailure reports the raw <failure> child element name the server
// sent, e.g. "not-authorized" or "temporary-auth-failure" — more granular
// than a generic authentication-failed error, supplementing the original
// wocky test harness's ServerProblem enum.
type ServerFailure struct {
	Reason string
}

func (f *ServerFailure) Error() string {
	if f.Reason == "" {
		return "sasl: authentication failed"
	}
	return "sasl: authentication failed: " + f.Reason
}

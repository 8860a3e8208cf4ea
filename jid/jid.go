// Package jid implements the XMPP address format (historically "Jabber
// ID"): [node@]domain[/resource].
package jid

import (
	"encoding/xml"
	"errors"
	"strings"

	"golang.org/x/net/idna"
)

// JID is a decomposed XMPP address. The zero value is not a valid JID; use
// Parse to build one.
type JID struct {
	node     string
	domain   string
	resource string
}

// Parse decomposes s into a JID per RFC 7622 §3.1-3.2: the resourcepart is
// everything after the first '/', the localpart is everything before the
// first '@' that remains, and the domainpart is whatever is left. A
// trailing dot on the domain is stripped.
func Parse(s string) (JID, error) {
	var node, resource, rest string

	if i := strings.IndexByte(s, '/'); i >= 0 {
		rest, resource = s[:i], s[i+1:]
		if resource == "" {
			return JID{}, errors.New("jid: resourcepart must be non-empty when present")
		}
	} else {
		rest = s
	}

	domain := rest
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		node, domain = rest[:i], rest[i+1:]
		if node == "" {
			return JID{}, errors.New("jid: localpart must be non-empty when present")
		}
	}
	domain = strings.TrimSuffix(domain, ".")

	if err := validate(node, domain, resource); err != nil {
		return JID{}, err
	}

	return JID{node: node, domain: domain, resource: resource}, nil
}

// MustParse is like Parse but panics on error; useful for tests and literals.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

func validate(node, domain, resource string) error {
	if len(node) > 1023 {
		return errors.New("jid: localpart must be smaller than 1024 bytes")
	}
	if strings.ContainsAny(node, "\"&'/:<>@") {
		return errors.New("jid: localpart contains forbidden characters")
	}
	if len(resource) > 1023 {
		return errors.New("jid: resourcepart must be smaller than 1024 bytes")
	}
	if l := len(domain); l < 1 || l > 1023 {
		return errors.New("jid: domainpart must be between 1 and 1023 bytes")
	}
	return validateDomain(domain)
}

// validateDomain runs the domainpart through IDNA normalization unless it is
// a bracketed IPv6 literal, rejecting malformed internationalized domains
// that a bare string splitter would silently accept.
func validateDomain(domain string) error {
	if l := len(domain); l > 2 && domain[0] == '[' && domain[l-1] == ']' {
		return nil
	}
	if _, err := idna.Lookup.ToASCII(domain); err != nil {
		return errors.New("jid: domainpart is not a valid domain name: " + err.Error())
	}
	return nil
}

// Node returns the localpart, or "" if none is present.
func (j JID) Node() string { return j.node }

// Domain returns the domainpart.
func (j JID) Domain() string { return j.domain }

// Resource returns the resourcepart, or "" if none is present.
func (j JID) Resource() string { return j.resource }

// IsZero reports whether j is the zero value.
func (j JID) IsZero() bool { return j == JID{} }

// Bare returns a copy of j with the resourcepart removed.
func (j JID) Bare() JID {
	j.resource = ""
	return j
}

// WithResource returns a copy of j with the resourcepart replaced.
func (j JID) WithResource(resource string) JID {
	j.resource = resource
	return j
}

// Equal reports whether j and other have identical node, domain, and
// resource parts.
func (j JID) Equal(other JID) bool {
	return j.node == other.node && j.domain == other.domain && j.resource == other.resource
}

// EqualBare reports whether j and other have the same bare JID, ignoring
// resource.
func (j JID) EqualBare(other JID) bool {
	return j.node == other.node && j.domain == other.domain
}

// String renders the canonical "[node@]domain[/resource]" form.
func (j JID) String() string {
	var b strings.Builder
	if j.node != "" {
		b.WriteString(j.node)
		b.WriteByte('@')
	}
	b.WriteString(j.domain)
	if j.resource != "" {
		b.WriteByte('/')
		b.WriteString(j.resource)
	}
	return b.String()
}

// MarshalXMLAttr satisfies xml.MarshalerAttr so a JID can be used directly as
// a struct field tagged `xml:"...,attr"`.
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	if j.IsZero() {
		return xml.Attr{}, nil
	}
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*j = JID{}
		return nil
	}
	parsed, err := Parse(attr.Value)
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

// Package stanza defines the stanza/element tree that the porter, sasl, and
// roster packages dispatch and build. The XML codec itself is an external
// collaborator; this package only fixes the shape that codec produces and
// consumes.
package stanza

import (
	"golang.org/x/text/language"

	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/ns"
)

// Kind is the top-level stanza class.
type Kind int

const (
	Message Kind = iota
	Presence
	IQ
)

func (k Kind) String() string {
	switch k {
	case Message:
		return "message"
	case Presence:
		return "presence"
	case IQ:
		return "iq"
	default:
		return "unknown"
	}
}

// SubKind folds the message, presence, and IQ "type" vocabularies into one
// enumeration, matching spec's sub_kind ∈ {none, get, set, result, error, …}.
type SubKind string

// None is the zero SubKind: a stanza with no type attribute at all.
const None SubKind = ""

// IQ sub-kinds (RFC 6120 §8.2.3).
const (
	Get    SubKind = "get"
	Set    SubKind = "set"
	Result SubKind = "result"
	Error  SubKind = "error"
)

// Presence sub-kinds (RFC 6121 §4.7.1).
const (
	Unavailable  SubKind = "unavailable"
	Subscribe    SubKind = "subscribe"
	Subscribed   SubKind = "subscribed"
	Unsubscribe  SubKind = "unsubscribe"
	Unsubscribed SubKind = "unsubscribed"
	Probe        SubKind = "probe"
)

// Message sub-kinds (RFC 6121 §5.2.2).
const (
	Chat      SubKind = "chat"
	Groupchat SubKind = "groupchat"
	Headline  SubKind = "headline"
	Normal    SubKind = "normal"
)

// Attr is a single XML attribute, kept in an ordered slice on Element rather
// than a map so that serialisation order is stable and deterministic.
type Attr struct {
	Name  string
	Value string
}

// Element is a node in a parsed stanza body: a name, an interned namespace,
// ordered attributes, ordered children, and optional text/xml:lang.
type Element struct {
	Name     string
	NS       ns.Tag
	Attr     []Attr
	Children []Element
	Text     string
	Lang     language.Tag
}

// NewElement returns an empty Element for the given name and namespace.
func NewElement(name string, namespace ns.Tag) Element {
	return Element{Name: name, NS: namespace}
}

// WithAttr returns a copy of e with name=value appended to its attribute
// list (or replacing an existing attribute of the same name).
func (e Element) WithAttr(name, value string) Element {
	for i := range e.Attr {
		if e.Attr[i].Name == name {
			e.Attr = append([]Attr(nil), e.Attr...)
			e.Attr[i].Value = value
			return e
		}
	}
	e.Attr = append(append([]Attr(nil), e.Attr...), Attr{Name: name, Value: value})
	return e
}

// WithChild returns a copy of e with child appended to its child list.
func (e Element) WithChild(child Element) Element {
	e.Children = append(append([]Element(nil), e.Children...), child)
	return e
}

// WithText returns a copy of e with its text content replaced.
func (e Element) WithText(text string) Element {
	e.Text = text
	return e
}

// GetAttr returns the value of the named attribute and whether it was
// present.
func (e Element) GetAttr(name string) (string, bool) {
	for _, a := range e.Attr {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child with the given name, if any.
func (e Element) Child(name string) (Element, bool) {
	for _, c := range e.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Element{}, false
}

// Stanza is one message, presence, or iq. Once constructed it is treated as
// an immutable value; the With* builder methods return modified copies
// rather than mutating the receiver.
type Stanza struct {
	Kind    Kind
	SubKind SubKind
	From    *jid.JID
	To      *jid.JID
	ID      string
	Lang    language.Tag
	Root    Element
}

// WithID returns a copy of s with ID replaced.
func (s Stanza) WithID(id string) Stanza {
	s.ID = id
	return s
}

// WithTo returns a copy of s with To replaced.
func (s Stanza) WithTo(to jid.JID) Stanza {
	s.To = &to
	return s
}

// WithFrom returns a copy of s with From replaced.
func (s Stanza) WithFrom(from jid.JID) Stanza {
	s.From = &from
	return s
}

// WithLang returns a copy of s with Lang replaced.
func (s Stanza) WithLang(lang language.Tag) Stanza {
	s.Lang = lang
	return s
}

// IsError reports whether s is a stanza-level error response.
func (s Stanza) IsError() bool {
	return s.SubKind == Error
}

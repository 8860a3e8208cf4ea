package roster

import "github.com/Thaodan/wocky/jid"

// Subscription mirrors the jabber:iq:roster item's subscription attribute.
// remove is a push-only wire value (RFC 6121 §2.1.2.8); it never appears on
// a stored Contact.
type Subscription string

const (
	None   Subscription = "none"
	To     Subscription = "to"
	From   Subscription = "from"
	Both   Subscription = "both"
	remove Subscription = "remove"
)

// Contact is one entry in the cached roster. Identity is by bare JID.
type Contact struct {
	Bare         jid.JID
	Name         string
	Subscription Subscription
	Groups       map[string]struct{}
}

// Diff describes which fields changed between the previous and pushed
// version of a Contact, passed alongside the modified signal so observers
// don't have to keep their own shadow copy to tell what changed.
type Diff struct {
	NameChanged         bool
	OldName, NewName    string
	SubscriptionChanged bool
	OldSubscription     Subscription
	NewSubscription     Subscription
	GroupsChanged       bool
	OldGroups           map[string]struct{}
	NewGroups           map[string]struct{}
}

func groupSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

func groupsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// diffContact reports what changed between old and updated, and whether
// anything did — the "merge iff any field changed" rule from the push spec.
func diffContact(old, updated Contact) (Diff, bool) {
	var d Diff
	var changed bool
	if old.Name != updated.Name {
		d.NameChanged = true
		d.OldName, d.NewName = old.Name, updated.Name
		changed = true
	}
	if old.Subscription != updated.Subscription {
		d.SubscriptionChanged = true
		d.OldSubscription, d.NewSubscription = old.Subscription, updated.Subscription
		changed = true
	}
	if !groupsEqual(old.Groups, updated.Groups) {
		d.GroupsChanged = true
		d.OldGroups, d.NewGroups = old.Groups, updated.Groups
		changed = true
	}
	return d, changed
}

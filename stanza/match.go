package stanza

// IsSupersetOf reports whether e is a superset of template: every attribute
// in template is present in e with the same value (attributes are
// compared as a set, so order and extra attributes on e are irrelevant),
// template's children appear in e's children in the same relative order
// (extra children interleaved in e are allowed, but not reordering), the
// element name and namespace match exactly, and if template carries text it
// equals e's text exactly.
//
// This is the wocky_xmpp_node_is_superset predicate used by handler
// dispatch condition 4: every element, attribute, namespace, and text in
// the match template must be present in the corresponding position of the
// inbound stanza body.
func (e Element) IsSupersetOf(template Element) bool {
	if e.Name != template.Name || e.NS != template.NS {
		return false
	}
	for _, ta := range template.Attr {
		v, ok := e.GetAttr(ta.Name)
		if !ok || v != ta.Value {
			return false
		}
	}
	if template.Text != "" && template.Text != e.Text {
		return false
	}
	return childrenContainInOrder(e.Children, template.Children)
}

// childrenContainInOrder reports whether, walking body in order, each
// template element in turn finds a superset match at or after the previous
// match's position — i.e. template is an in-order (not necessarily
// contiguous) subsequence of body under IsSupersetOf.
func childrenContainInOrder(body, template []Element) bool {
	pos := 0
	for _, t := range template {
		found := false
		for pos < len(body) {
			candidate := body[pos]
			pos++
			if candidate.IsSupersetOf(t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

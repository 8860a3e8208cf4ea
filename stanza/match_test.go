package stanza_test

import (
	"testing"

	"github.com/Thaodan/wocky/stanza"
)

func TestIsSupersetOf(t *testing.T) {
	body := stanza.NewElement("query", 0).
		WithAttr("xmlns", "jabber:iq:roster").
		WithChild(stanza.NewElement("item", 0).WithAttr("jid", "romeo@example.net").WithAttr("subscription", "both")).
		WithChild(stanza.NewElement("item", 0).WithAttr("jid", "juliet@example.net"))

	template := stanza.NewElement("query", 0).WithAttr("xmlns", "jabber:iq:roster")
	if !body.IsSupersetOf(template) {
		t.Error("expected body to be a superset of the bare query template")
	}

	itemTemplate := stanza.NewElement("query", 0).
		WithAttr("xmlns", "jabber:iq:roster").
		WithChild(stanza.NewElement("item", 0).WithAttr("jid", "romeo@example.net"))
	if !body.IsSupersetOf(itemTemplate) {
		t.Error("expected body to be a superset of the single-item template")
	}

	wrongOrder := stanza.NewElement("query", 0).
		WithAttr("xmlns", "jabber:iq:roster").
		WithChild(stanza.NewElement("item", 0).WithAttr("jid", "juliet@example.net")).
		WithChild(stanza.NewElement("item", 0).WithAttr("jid", "romeo@example.net"))
	if body.IsSupersetOf(wrongOrder) {
		t.Error("expected body to NOT be a superset of the out-of-order template")
	}

	missingAttr := stanza.NewElement("query", 0).WithAttr("xmlns", "wrong:ns")
	if body.IsSupersetOf(missingAttr) {
		t.Error("expected body to NOT be a superset when xmlns differs")
	}

	wrongName := stanza.NewElement("items", 0)
	if body.IsSupersetOf(wrongName) {
		t.Error("expected body to NOT be a superset when element name differs")
	}
}

package jid_test

import (
	"testing"

	"github.com/Thaodan/wocky/jid"
)

func TestValidJIDs(t *testing.T) {
	for _, tc := range []struct {
		jid, node, domain, resource string
	}{
		{"example.net", "", "example.net", ""},
		{"example.net/rp", "", "example.net", "rp"},
		{"mercutio@example.net", "mercutio", "example.net", ""},
		{"mercutio@example.net/rp", "mercutio", "example.net", "rp"},
		{"mercutio@example.net/rp@rp", "mercutio", "example.net", "rp@rp"},
		{"mercutio@example.net/rp@rp/rp", "mercutio", "example.net", "rp@rp/rp"},
		{"example.net.", "", "example.net", ""},
		{"[::1]", "", "[::1]", ""},
	} {
		j, err := jid.Parse(tc.jid)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tc.jid, err)
			continue
		}
		if got := j.Node(); got != tc.node {
			t.Errorf("Parse(%q).Node() = %q, want %q", tc.jid, got, tc.node)
		}
		if got := j.Domain(); got != tc.domain {
			t.Errorf("Parse(%q).Domain() = %q, want %q", tc.jid, got, tc.domain)
		}
		if got := j.Resource(); got != tc.resource {
			t.Errorf("Parse(%q).Resource() = %q, want %q", tc.jid, got, tc.resource)
		}
		if got := j.String(); got != tc.jid && got+"." != tc.jid {
			t.Errorf("Parse(%q).String() = %q", tc.jid, got)
		}
	}
}

func TestInvalidJIDs(t *testing.T) {
	for _, s := range []string{
		"@example.com/rp",
		"example.com/",
		"@/",
		`b"d@example.net`,
		`b&d@example.net`,
		`b'd@example.net`,
		`b:d@example.net`,
		`b<d@example.net`,
		`b>d@example.net`,
		"user@not a domain",
	} {
		if _, err := jid.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error, got none", s)
		}
	}
}

func TestBare(t *testing.T) {
	j := jid.MustParse("romeo@example.net/balcony")
	bare := j.Bare()
	if got := bare.Resource(); got != "" {
		t.Errorf("Bare().Resource() = %q, want empty", got)
	}
	if bare.Node() != j.Node() || bare.Domain() != j.Domain() {
		t.Errorf("Bare() changed node/domain: %v", bare)
	}
}

func TestEqual(t *testing.T) {
	a := jid.MustParse("romeo@example.net/balcony")
	b := jid.MustParse("romeo@example.net/balcony")
	c := jid.MustParse("romeo@example.net/orchard")

	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("expected %v to not equal %v", a, c)
	}
	if !a.EqualBare(c) {
		t.Errorf("expected %v to bare-equal %v", a, c)
	}
}

func TestWithResource(t *testing.T) {
	j := jid.MustParse("romeo@example.net")
	withRes := j.WithResource("balcony")
	if got := withRes.String(); got != "romeo@example.net/balcony" {
		t.Errorf("WithResource: got %q", got)
	}
}

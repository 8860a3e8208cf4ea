package porter

import (
	"sort"
	"sync"

	"github.com/Thaodan/wocky/jid"
	"github.com/Thaodan/wocky/stanza"
)

// Handler is the 6-tuple described in spec's data model: kind, an optional
// sub-kind (nil means "any"), an optional from-pattern (nil means
// wildcard; an unset node/resource on a set pattern is itself a wildcard
// for that component), a priority used to totally order handlers
// (descending, ties keep registration order), a subset match template, and
// the callback itself.
type Handler struct {
	Kind     stanza.Kind
	SubKind  *stanza.SubKind
	From     *jid.JID
	Priority int
	Match    stanza.Element
	Callback func(stanza.Stanza) (handled bool)
}

// HandlerID is the opaque registration handle RegisterHandler returns. It
// combines an arena slot index with a generation counter so that a stale id
// from a since-reused slot can never unregister the wrong handler.
type HandlerID struct {
	index      int
	generation uint64
}

type handlerSlot struct {
	handler    Handler
	generation uint64
	regOrder   int
	live       bool
}

// handlerTable is the porter's priority-ordered handler arena. Register and
// unregister may be called from any goroutine and are serialised by mu;
// dispatch reads it from the porter's receive loop.
type handlerTable struct {
	slots    []handlerSlot
	free     []int
	nextOrd  int
	sortedOK bool
	sorted   []int
	mu       sync.Mutex // guards registration from caller goroutines; dispatch itself runs single-threaded on the receive loop
}

func newHandlerTable() *handlerTable {
	return &handlerTable{}
}

func (t *handlerTable) register(h Handler) HandlerID {
	t.mu.Lock()
	defer t.mu.Unlock()

	order := t.nextOrd
	t.nextOrd++

	if len(t.free) > 0 {
		idx := t.free[len(t.free)-1]
		t.free = t.free[:len(t.free)-1]
		t.slots[idx].generation++
		t.slots[idx].handler = h
		t.slots[idx].regOrder = order
		t.slots[idx].live = true
		t.sortedOK = false
		return HandlerID{index: idx, generation: t.slots[idx].generation}
	}

	t.slots = append(t.slots, handlerSlot{handler: h, generation: 1, regOrder: order, live: true})
	t.sortedOK = false
	return HandlerID{index: len(t.slots) - 1, generation: 1}
}

func (t *handlerTable) unregister(id HandlerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id.index < 0 || id.index >= len(t.slots) {
		return
	}
	s := &t.slots[id.index]
	if !s.live || s.generation != id.generation {
		return
	}
	s.live = false
	s.handler = Handler{}
	t.free = append(t.free, id.index)
	t.sortedOK = false
}

// orderedLive returns live handlers sorted by descending priority, ties
// broken by ascending registration order, matching compare_handler in the
// original C porter.
func (t *handlerTable) orderedLive() []Handler {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := make([]int, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].live {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool {
		sa, sb := t.slots[idx[a]], t.slots[idx[b]]
		if sa.handler.Priority != sb.handler.Priority {
			return sa.handler.Priority > sb.handler.Priority
		}
		return sa.regOrder < sb.regOrder
	})

	out := make([]Handler, len(idx))
	for i, id := range idx {
		out[i] = t.slots[id].handler
	}
	return out
}

// matches implements dispatch condition checks 1-4 of spec's dispatch
// algorithm.
func matches(h Handler, s stanza.Stanza) bool {
	if h.Kind != s.Kind {
		return false
	}
	if h.SubKind != nil && *h.SubKind != s.SubKind {
		return false
	}
	if h.From != nil {
		if s.From == nil {
			return false
		}
		if h.From.Domain() != s.From.Domain() {
			return false
		}
		if h.From.Node() != "" && h.From.Node() != s.From.Node() {
			return false
		}
		if h.From.Resource() != "" && h.From.Resource() != s.From.Resource() {
			return false
		}
	}
	return matchesBody(s.Root, h.Match)
}

// matchesBody implements dispatch condition 4: template is a subset of the
// stanza body. A zero-value template (no name, namespace, attrs, children,
// or text) is the wildcard "any body" match used by the built-in IQ-reply
// interceptor. Otherwise template must be a subset-match of at least one of
// the stanza's top-level payload children — the common case of a single
// <query>/<show>/<x> payload element named in the handler registration.
func matchesBody(root stanza.Element, template stanza.Element) bool {
	if isZeroElement(template) {
		return true
	}
	for _, child := range root.Children {
		if child.IsSupersetOf(template) {
			return true
		}
	}
	return false
}

func isZeroElement(e stanza.Element) bool {
	return e.Name == "" && e.NS == 0 && len(e.Attr) == 0 && len(e.Children) == 0 && e.Text == ""
}

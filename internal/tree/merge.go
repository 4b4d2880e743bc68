// SPDX-License-Identifier: LGPL-2.1-only

package tree

import "github.com/yconfd/yconfd/internal/mgmterror"

// EditNode is a detached tree fragment supplied by a caller composing an
// edit (an RPC payload, a loaded file, a plugin's reset output). It carries
// the same shape as an arena node but is not itself arena-resident, so
// callers can build it without a Store.
type EditNode struct {
	Name       QName
	Body       string
	IsLeafList bool
	Keys       []string
	Attrs      map[string]string
	DefOp      Op
	HasDefOp   bool
	Children   []*EditNode
}

// effectiveOp resolves the default-operation in effect for a node: its own
// annotation if present, otherwise the operation inherited from its parent.
func (e *EditNode) effectiveOp(inherited Op) Op {
	if e.HasDefOp {
		return e.DefOp
	}
	return inherited
}

// Put applies subtree to the named datastore under the given default
// operation, following NETCONF edit-config semantics. user is recorded for
// audit purposes by callers; the tree store itself does not interpret it.
func (s *Store) Put(name Name, op Op, subtree *EditNode, _ string) *mgmterror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.trees[name]
	if !ok {
		return mgmterror.NewMissingElementError(string(name))
	}
	if subtree == nil {
		return nil
	}
	for _, child := range subtree.Children {
		if err := composeEdit(a, a.root, child, op); err != nil {
			return err
		}
	}
	return nil
}

// composeEdit applies one edit node under parent, using inherited as the
// default-operation in effect if the node has none of its own.
func composeEdit(a *Arena, parent handle, e *EditNode, inherited Op) *mgmterror.Error {
	op := e.effectiveOp(inherited)
	existing := matchChild(a, parent, e)

	switch op {
	case OpCreate:
		if existing != noHandle {
			return mgmterror.NewDataExistsError(e.Name.String())
		}
		graftNew(a, parent, e, op)
		return nil

	case OpDelete:
		if existing == noHandle {
			return mgmterror.NewDataMissingError(e.Name.String())
		}
		detach(a, parent, existing)
		return nil

	case OpRemove:
		if existing != noHandle {
			detach(a, parent, existing)
		}
		return nil

	case OpNone:
		if existing == noHandle {
			return nil
		}
		for _, c := range e.Children {
			if err := composeEdit(a, existing, c, op); err != nil {
				return err
			}
		}
		return nil

	case OpReplace:
		if existing != noHandle {
			detach(a, parent, existing)
		}
		graftNew(a, parent, e, op)
		return nil

	default: // OpMerge
		if existing == noHandle {
			graftNew(a, parent, e, op)
			return nil
		}
		n := a.get(existing)
		n.body = e.Body
		n.isLeafList = e.IsLeafList
		if len(e.Keys) > 0 {
			n.keys = append([]string(nil), e.Keys...)
		}
		for k, v := range e.Attrs {
			if n.attrs == nil {
				n.attrs = make(map[string]string)
			}
			n.attrs[k] = v
		}
		for _, c := range e.Children {
			if err := composeEdit(a, existing, c, op); err != nil {
				return err
			}
		}
		return nil
	}
}

// matchChild finds an existing child of parent matching e's identity: by
// qualified name, further disambiguated by declared keys for list entries
// or by value for leaf-lists. List entries are matched by their
// YANG-declared keys, not by position; leaf-lists are matched by value.
func matchChild(a *Arena, parent handle, e *EditNode) handle {
	p := a.get(parent)
	if p == nil {
		return noHandle
	}
	for _, c := range p.children {
		cn := a.get(c)
		if cn.name != e.Name {
			continue
		}
		if e.IsLeafList {
			if cn.body == e.Body {
				return c
			}
			continue
		}
		if len(e.Keys) > 0 {
			if sameKeys(a, c, e) {
				return c
			}
			continue
		}
		return c
	}
	return noHandle
}

func sameKeys(a *Arena, existing handle, e *EditNode) bool {
	for _, k := range e.Keys {
		ev := keyValue(e, k)
		nv := childBody(a, existing, k)
		if ev != nv {
			return false
		}
	}
	return true
}

func keyValue(e *EditNode, localName string) string {
	for _, c := range e.Children {
		if c.Name.Local == localName {
			return c.Body
		}
	}
	return ""
}

func childBody(a *Arena, parent handle, localName string) string {
	p := a.get(parent)
	if p == nil {
		return ""
	}
	for _, c := range p.children {
		cn := a.get(c)
		if cn.name.Local == localName {
			return cn.body
		}
	}
	return ""
}

// graftNew allocates a fresh subgraph for e (and its descendants) under
// parent, preserving child order.
func graftNew(a *Arena, parent handle, e *EditNode, op Op) handle {
	n := node{
		name:       e.Name,
		body:       e.Body,
		isLeafList: e.IsLeafList,
		parent:     parent,
	}
	if len(e.Keys) > 0 {
		n.keys = append([]string(nil), e.Keys...)
	}
	if len(e.Attrs) > 0 {
		n.attrs = make(map[string]string, len(e.Attrs))
		for k, v := range e.Attrs {
			n.attrs[k] = v
		}
	}
	h := a.alloc(n)
	p := a.get(parent)
	p.children = append(p.children, h)
	for _, c := range e.Children {
		graftChild(a, h, c, op)
	}
	return h
}

// graftChild recursively grafts a whole edit subtree verbatim (used when
// the parent was just created, so there is nothing to merge against).
func graftChild(a *Arena, parent handle, e *EditNode, op Op) {
	graftNew(a, parent, e, op)
}

// detach removes child from parent's child list. The node's arena slot is
// left in place (not reclaimed) per the bulk-reclaim-at-datastore-scope
// design in ; it simply becomes unreachable from root.
func detach(a *Arena, parent, child handle) {
	p := a.get(parent)
	out := p.children[:0]
	for _, c := range p.children {
		if c != child {
			out = append(out, c)
		}
	}
	p.children = out
}

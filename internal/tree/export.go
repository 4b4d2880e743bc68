// SPDX-License-Identifier: LGPL-2.1-only

package tree

// Export walks a Fragment and returns a detached EditNode tree equivalent
// to it, used by persistence (XML projection), RESTCONF (JSON projection)
// and the transaction engine's diff computation. The synthetic root
// container is represented as an EditNode whose Children are the
// fragment's roots.
func (f *Fragment) Export() *EditNode {
	root := &EditNode{Name: QName{Local: "config"}}
	if f == nil {
		return root
	}
	for _, h := range f.roots {
		root.Children = append(root.Children, exportNode(f.arena, h))
	}
	return root
}

func exportNode(a *Arena, h handle) *EditNode {
	n := a.get(h)
	e := &EditNode{
		Name:       n.name,
		Body:       n.body,
		IsLeafList: n.isLeafList,
	}
	if len(n.keys) > 0 {
		e.Keys = append([]string(nil), n.keys...)
	}
	if len(n.attrs) > 0 {
		e.Attrs = make(map[string]string, len(n.attrs))
		for _, k := range sortedKeys(n.attrs) {
			e.Attrs[k] = n.attrs[k]
		}
	}
	for _, c := range n.children {
		e.Children = append(e.Children, exportNode(a, c))
	}
	return e
}

// ExportArena returns the whole arena (rooted at its root container) as a
// detached EditNode tree, used when the transaction engine needs a full
// snapshot to diff or persist rather than a filtered Fragment.
func ExportArena(a *Arena) *EditNode {
	f := &Fragment{arena: a, roots: rootChildren(a)}
	return f.Export()
}

func rootChildren(a *Arena) []handle {
	r := a.get(a.root)
	if r == nil {
		return nil
	}
	return append([]handle(nil), r.children...)
}

// Equal reports deep structural equality between two detached trees,
// comparing name, body and leaf-list flag; keys and attributes are not
// compared. Children are compared in order, for containers as well as
// lists, even though a container's insertion order is not significant.
// For simplicity and because arena export already preserves insertion
// order faithfully, Equal compares in order; this is sufficient for the
// round-trip and idempotence invariants in , which never reorder
// containers independently of their own edits.
func Equal(a, b *EditNode) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Name != b.Name || a.Body != b.Body || a.IsLeafList != b.IsLeafList {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !Equal(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

// FromEditNode builds a brand-new Arena whose root's children are grafted
// from root's Children, used by the transaction engine to install a
// committed candidate as a datastore's new contents.
func FromEditNode(root *EditNode) *Arena {
	a := NewArena()
	if root == nil {
		return a
	}
	for _, c := range root.Children {
		graftNew(a, a.root, c, OpMerge)
	}
	return a
}

// BuildEdit constructs an EditNode tree from a list of slash-separated
// paths with optional leaf values, a convenience used by tests, by
// RESTCONF's request-body decoding and by yconfcli's edit command.
func BuildEdit(paths map[string]string) *EditNode {
	root := &EditNode{Name: QName{Local: "config"}}
	for path, value := range paths {
		insertPath(root, path, value)
	}
	return root
}

func insertPath(root *EditNode, path, value string) {
	steps := splitSteps(path)
	cur := root
	for i, step := range steps {
		name, key, val, hasPred := parseStep(step)
		var next *EditNode
		for _, c := range cur.Children {
			if c.Name.Local != name {
				continue
			}
			if hasPred {
				if keyValue(c, key) == val {
					next = c
					break
				}
				continue
			}
			next = c
			break
		}
		if next == nil {
			next = &EditNode{Name: QName{Local: name}}
			if hasPred {
				next.Keys = []string{key}
				next.Children = append(next.Children, &EditNode{Name: QName{Local: key}, Body: val})
			}
			cur.Children = append(cur.Children, next)
		}
		if i == len(steps)-1 {
			next.Body = value
		}
		cur = next
	}
}

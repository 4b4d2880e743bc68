// SPDX-License-Identifier: LGPL-2.1-only

// Package txn implements , the transaction engine: the central
// algorithm that drives a candidate→target commit through
// validate/commit/revert phases with rollback.
package txn

import "github.com/yconfd/yconfd/internal/tree"

// ChangeKind classifies one entry in a Diff.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
	Changed
)

// Change is one node-level difference between a transaction's original and
// candidate trees, tagged with its path (E step 1: "Compute a
// diff: the set of added, removed, and changed nodes, each tagged with its
// schema node"). Path is the slash-separated element path with key
// predicates; resolving it to an actual *schema.Node is SchemaPathOf's job,
// not the diff's.
type Change struct {
	Kind ChangeKind
	Path string
	Node *tree.EditNode // candidate-side node for Added/Changed, original-side for Removed
}

// Diff is the frozen set of changes a transaction carries from the end of
// validate onward: it is cloned at end-of-validate, so commit and revert
// callbacks see the same diff the forward pass computed regardless of what
// a commit callback subsequently mutates.
type Diff struct {
	Changes []Change
}

// Empty reports whether the diff has no changes, used to short-circuit a
// no-op commit (E step 1).
func (d *Diff) Empty() bool { return d == nil || len(d.Changes) == 0 }

// Clone copies the diff's change list into a new Diff, so changes later
// added to or removed from the original list are not seen through the
// clone. The EditNode each Change points at is shared, not copied.
func (d *Diff) Clone() *Diff {
	if d == nil {
		return &Diff{}
	}
	out := &Diff{Changes: make([]Change, len(d.Changes))}
	copy(out.Changes, d.Changes)
	return out
}

// computeDiff recursively compares original and candidate, producing a flat
// list of changes tagged with their absolute path.
func computeDiff(original, candidate *tree.EditNode) *Diff {
	d := &Diff{}
	diffChildren(original, candidate, "", d)
	return d
}

func diffChildren(orig, cand *tree.EditNode, path string, d *Diff) {
	origByKey := indexChildren(orig)
	candByKey := indexChildren(cand)

	for key, co := range origByKey {
		if _, ok := candByKey[key]; !ok {
			d.Changes = append(d.Changes, Change{Kind: Removed, Path: path + "/" + key, Node: co})
		}
	}
	for key, cc := range candByKey {
		co, existed := origByKey[key]
		if !existed {
			d.Changes = append(d.Changes, Change{Kind: Added, Path: path + "/" + key, Node: cc})
			continue
		}
		if co.Body != cc.Body || len(co.Children) != len(cc.Children) {
			d.Changes = append(d.Changes, Change{Kind: Changed, Path: path + "/" + key, Node: cc})
		}
		diffChildren(co, cc, path+"/"+key, d)
	}
}

// indexChildren keys children by local name, further disambiguated by
// declared keys (for list entries) so distinct entries don't collide.
func indexChildren(n *tree.EditNode) map[string]*tree.EditNode {
	out := make(map[string]*tree.EditNode)
	if n == nil {
		return out
	}
	for _, c := range n.Children {
		key := c.Name.Local
		if len(c.Keys) > 0 {
			for _, k := range c.Keys {
				key += "[" + k + "=" + keyBody(c, k) + "]"
			}
		} else if c.IsLeafList {
			key += "=" + c.Body
		}
		out[key] = c
	}
	return out
}

func keyBody(n *tree.EditNode, localKeyName string) string {
	for _, c := range n.Children {
		if c.Name.Local == localKeyName {
			return c.Body
		}
	}
	return ""
}

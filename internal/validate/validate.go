// SPDX-License-Identifier: LGPL-2.1-only

// Package validate evaluates YANG-derived constraints against a tree and
// produces structured errors. Validation is pure and side-effect-free on
// the tree it inspects.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
)

// Validator walks a tree against a schema, optionally consulting a Cache to
// skip re-checking subtrees whose content hash and schema identity were
// already verified clean.
type Validator struct {
	Cache *Cache
}

func New(cache *Cache) *Validator {
	return &Validator{Cache: cache}
}

// Validate evaluates root (the candidate's <config> container) against
// schemaRoot and returns either an empty list (ok) or a non-empty list of
// error records.
func (v *Validator) Validate(root *tree.EditNode, schemaRoot *schema.Node) mgmterror.List {
	var errs mgmterror.List
	ctx := &context{root: root, schemaRoot: schemaRoot}
	v.validateChildren(ctx, root, schemaRoot, "", &errs)
	return errs
}

type context struct {
	root       *tree.EditNode
	schemaRoot *schema.Node
}

func (v *Validator) validateChildren(ctx *context, n *tree.EditNode, sn *schema.Node, path string, errs *mgmterror.List) {
	if sn == nil {
		return
	}
	// Mandatory children.
	for _, sc := range sn.Children {
		if sc.Mandatory && findChild(n, sc.Name) == nil {
			*errs = append(*errs, mgmterror.NewMissingElementError(path+"/"+sc.Name))
		}
	}
	// Unique constraints across list entries at this level.
	for _, sc := range sn.Children {
		if sc.Kind == schema.KindList {
			validateListConstraints(n, sc, path, errs)
		}
	}
	for _, c := range n.Children {
		sc := sn.Child(c.Name.Local)
		if sc == nil {
			// No schema node: treated as a freely-typed error payload
			// ( invariant exception) rather than a violation.
			continue
		}
		childPath := path + "/" + sc.Name
		// Leafrefs resolve against the whole tree, so such subtrees are not cached.
		cacheable := !hasLeafref(sc)
		if cached, ok := v.cacheLookup(c, sc); cacheable && ok && cached {
			continue
		}
		before := len(*errs)
		v.validateNode(ctx, c, sc, childPath, errs)
		if sc.Kind == schema.KindContainer || sc.Kind == schema.KindList {
			v.validateChildren(ctx, c, sc, childPath, errs)
		}
		clean := len(*errs) == before
		if cacheable {
			v.cacheStore(c, sc, clean)
		}
	}
}

func hasLeafref(sn *schema.Node) bool {
	for _, c := range sn.Children {
		if hasLeafref(c) {
			return true
		}
	}
	return sn.LeafrefPath != ""
}

func (v *Validator) validateNode(ctx *context, n *tree.EditNode, sn *schema.Node, path string, errs *mgmterror.List) {
	switch sn.Kind {
	case schema.KindLeaf, schema.KindLeafList:
		validateType(n.Body, sn.Type, path, errs)
		if sn.LeafrefPath != "" && !resolveLeafref(ctx.root, n.Body, sn.LeafrefPath) {
			*errs = append(*errs, mgmterror.NewBadElementError(path))
		}
	case schema.KindList:
		for _, k := range sn.Keys {
			if findChild(n, k) == nil {
				*errs = append(*errs, mgmterror.NewMissingElementError(path+"/"+k))
			}
		}
	}
	for _, must := range sn.Must {
		if !evalSimpleExpr(ctx.root, n, must) {
			e := mgmterror.NewOperationFailedApplicationError(fmt.Sprintf("must constraint violated: %s", must))
			e.Path = path
			*errs = append(*errs, e)
		}
	}
	if sn.When != "" && !evalSimpleExpr(ctx.root, n, sn.When) {
		// A false "when" prunes the node from the effective tree rather
		// than being an error; since we cannot mutate the candidate during
		// validation (validation is pure, C), we simply do not
		// flag it. The node is not pruned anywhere: it stays in the tree,
		// and the type and must checks above still apply to it.
		return
	}
}

func validateListConstraints(parent *tree.EditNode, sn *schema.Node, path string, errs *mgmterror.List) {
	entries := childrenByName(parent, sn.Name)
	if sn.MinElements > 0 && len(entries) < sn.MinElements {
		*errs = append(*errs, mgmterror.NewOperationFailedApplicationError(
			fmt.Sprintf("%s requires at least %d entries", path+"/"+sn.Name, sn.MinElements)))
	}
	if sn.MaxElements > 0 && len(entries) > sn.MaxElements {
		*errs = append(*errs, mgmterror.NewOperationFailedApplicationError(
			fmt.Sprintf("%s allows at most %d entries", path+"/"+sn.Name, sn.MaxElements)))
	}
	for _, uniqueSet := range sn.Unique {
		seen := make(map[string]bool)
		for _, e := range entries {
			key := uniqueValueKey(e, uniqueSet)
			if seen[key] {
				*errs = append(*errs, mgmterror.NewOperationFailedApplicationError(
					fmt.Sprintf("unique constraint violated on %s", path+"/"+sn.Name)))
				break
			}
			seen[key] = true
		}
	}
}

func uniqueValueKey(e *tree.EditNode, leaves []string) string {
	parts := make([]string, len(leaves))
	for i, l := range leaves {
		if c := findChild(e, l); c != nil {
			parts[i] = c.Body
		}
	}
	return strings.Join(parts, "\x00")
}

func validateType(value string, t *schema.Type, path string, errs *mgmterror.List) {
	if t == nil {
		return
	}
	switch t.Name {
	case "int32", "int64", "uint16", "uint32", "uint64":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			*errs = append(*errs, mgmterror.NewInvalidValueError("not an integer: "+value))
			return
		}
		if t.Min != nil && n < *t.Min {
			*errs = append(*errs, mgmterror.NewInvalidValueError(fmt.Sprintf("%d below minimum %d", n, *t.Min)))
		}
		if t.Max != nil && n > *t.Max {
			*errs = append(*errs, mgmterror.NewInvalidValueError(fmt.Sprintf("%d above maximum %d", n, *t.Max)))
		}
	case "boolean":
		if value != "true" && value != "false" {
			*errs = append(*errs, mgmterror.NewInvalidValueError("not a boolean: "+value))
		}
	case "enumeration":
		ok := false
		for _, e := range t.Enum {
			if e == value {
				ok = true
				break
			}
		}
		if !ok {
			*errs = append(*errs, mgmterror.NewInvalidValueError("not a valid enum value: "+value))
		}
	}
	if t.Pattern != nil && !t.Pattern.MatchString(value) {
		e := mgmterror.NewInvalidValueError("does not match pattern")
		e.Path = path
		*errs = append(*errs, e)
	}
}

// resolveLeafref walks root looking for any node whose rendered path
// matches the (simplified, already-resolved-to-absolute) leafref path and
// whose body equals value.
func resolveLeafref(root *tree.EditNode, value, path string) bool {
	steps := strings.Split(strings.TrimPrefix(path, "/"), "/")
	return walkLeafref(root, steps, value)
}

func walkLeafref(n *tree.EditNode, steps []string, value string) bool {
	if len(steps) == 0 {
		return n.Body == value
	}
	for _, c := range n.Children {
		if c.Name.Local == steps[0] && walkLeafref(c, steps[1:], value) {
			return true
		}
	}
	return false
}

// evalSimpleExpr evaluates a restricted when/must expression of the form
// "exists(<relative-path>)" or "<relative-path>=<value>". The full YANG
// XPath subset is out of scope for this engine ; this is
// sufficient to exercise revert/invalid paths end to end.
func evalSimpleExpr(root, n *tree.EditNode, expr string) bool {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "exists(") && strings.HasSuffix(expr, ")") {
		path := expr[len("exists(") : len(expr)-1]
		return findByPath(n, path) != nil
	}
	if eq := strings.IndexByte(expr, '='); eq >= 0 {
		path := strings.TrimSpace(expr[:eq])
		want := strings.Trim(strings.TrimSpace(expr[eq+1:]), "'\"")
		c := findByPath(n, path)
		return c != nil && c.Body == want
	}
	return true
}

func findByPath(n *tree.EditNode, path string) *tree.EditNode {
	cur := n
	for _, step := range strings.Split(path, "/") {
		if step == "" || step == "." {
			continue
		}
		next := findChild(cur, step)
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func findChild(n *tree.EditNode, local string) *tree.EditNode {
	for _, c := range n.Children {
		if c.Name.Local == local {
			return c
		}
	}
	return nil
}

func childrenByName(n *tree.EditNode, local string) []*tree.EditNode {
	var out []*tree.EditNode
	for _, c := range n.Children {
		if c.Name.Local == local {
			out = append(out, c)
		}
	}
	return out
}

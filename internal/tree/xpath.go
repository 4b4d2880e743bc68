// SPDX-License-Identifier: LGPL-2.1-only

package tree

import "strings"

// selectPath resolves a simplified XPath-like filter against the arena
// rooted at root. The full XPath/when/must expression language is the
// validator's concern ; here we only need the subset needed
// to address elements for get(): an absolute slash-separated path of local
// names, optionally with a single [key='value'] predicate per step, e.g.
// "/interfaces/interface[name='eth0']/address". An empty path selects the
// whole tree (all of root's children).
func selectPath(a *Arena, root handle, xpath string) []handle {
	xpath = strings.TrimSpace(xpath)
	if xpath == "" {
		rn := a.get(root)
		if rn == nil {
			return nil
		}
		return append([]handle(nil), rn.children...)
	}
	steps := splitSteps(xpath)
	cur := []handle{root}
	for _, step := range steps {
		name, key, val, hasPred := parseStep(step)
		var next []handle
		for _, h := range cur {
			p := a.get(h)
			if p == nil {
				continue
			}
			for _, c := range p.children {
				cn := a.get(c)
				if cn.name.Local != name {
					continue
				}
				if hasPred && childBody(a, c, key) != val {
					continue
				}
				next = append(next, c)
			}
		}
		cur = next
		if len(cur) == 0 {
			return nil
		}
	}
	return cur
}

func splitSteps(xpath string) []string {
	xpath = strings.TrimPrefix(xpath, "/")
	if xpath == "" {
		return nil
	}
	return strings.Split(xpath, "/")
}

// parseStep splits a step like "interface[name='eth0']" into its local
// name and, if present, a single key/value predicate.
func parseStep(step string) (name, key, val string, hasPred bool) {
	i := strings.IndexByte(step, '[')
	if i < 0 {
		return step, "", "", false
	}
	name = step[:i]
	pred := strings.TrimSuffix(step[i+1:], "]")
	eq := strings.IndexByte(pred, '=')
	if eq < 0 {
		return name, "", "", false
	}
	key = strings.TrimSpace(pred[:eq])
	val = strings.Trim(strings.TrimSpace(pred[eq+1:]), "'\"")
	return name, key, val, true
}

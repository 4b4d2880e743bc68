// SPDX-License-Identifier: LGPL-2.1-only

package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/yconfd/yconfd/internal/schema"
	"github.com/yconfd/yconfd/internal/tree"
)

// Cache memoizes "this subtree, under this schema node, validated clean"
// decisions so that repeated commits over large unchanged subtrees (a
// common shape in network configuration: thousands of untouched interface
// entries alongside one edited one) skip redundant constraint evaluation.
// It is backed by an embedded badger instance per the ambient-stack
// expansion; losing the cache only costs performance, never correctness,
// since every entry is keyed by a content hash that changes if the subtree
// or its schema identity changes.
type Cache struct {
	db *badger.DB
}

// NewInMemoryCache opens a badger database entirely in memory, suitable for
// the lifetime of one daemon process.
func NewInMemoryCache() (*Cache, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open validation cache: %w", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func cacheKey(n *tree.EditNode, schemaNode string) []byte {
	h := sha256.New()
	hashNode(h, n)
	h.Write([]byte("|schema:" + schemaNode))
	return []byte(hex.EncodeToString(h.Sum(nil)))
}

func hashNode(h interface{ Write([]byte) (int, error) }, n *tree.EditNode) {
	h.Write([]byte(n.Name.String()))
	h.Write([]byte{0})
	h.Write([]byte(n.Body))
	h.Write([]byte{0})
	for _, c := range n.Children {
		hashNode(h, c)
	}
}

func schemaIdentity(sn *schema.Node) string {
	return fmt.Sprintf("%s:%s:%d", sn.Module, sn.Name, sn.Kind)
}

func (v *Validator) cacheLookup(n *tree.EditNode, sn *schema.Node) (clean, ok bool) {
	if v.Cache == nil || v.Cache.db == nil {
		return false, false
	}
	key := cacheKey(n, schemaIdentity(sn))
	err := v.Cache.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			clean = len(val) == 1 && val[0] == 1
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, false
	}
	if err != nil {
		return false, false
	}
	return clean, true
}

func (v *Validator) cacheStore(n *tree.EditNode, sn *schema.Node, clean bool) {
	if v.Cache == nil || v.Cache.db == nil {
		return
	}
	key := cacheKey(n, schemaIdentity(sn))
	val := []byte{0}
	if clean {
		val[0] = 1
	}
	_ = v.Cache.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

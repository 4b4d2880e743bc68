// SPDX-License-Identifier: LGPL-2.1-only

// Package persist loads and stores a named datastore to a durable file,
// with atomic replace semantics. Persistence is the only component that
// reads or writes datastore files; the commit audit trail (internal/audit)
// keeps its own separate database file.
package persist

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/yconfd/yconfd/internal/mgmterror"
	"github.com/yconfd/yconfd/internal/tree"
)

// Store persists datastores as one file per store under Dir, named
// "<store>_db", holding a <config> root document. XML is used because it
// is the persisted wire form the running/startup/failsafe datastores
// mandate; see DESIGN.md for why this is one of the few stdlib-only parts
// of the repository.
type Store struct {
	Dir string
	Log zerolog.Logger
}

func New(dir string, log zerolog.Logger) *Store {
	return &Store{Dir: dir, Log: log.With().Str("component", "persist").Logger()}
}

func (s *Store) path(name tree.Name) string {
	return filepath.Join(s.Dir, string(name)+"_db")
}

// xmlElement is the wire-level XML shape one level of tree.EditNode maps
// to; it is a pure projection, not a second source of truth.
type xmlElement struct {
	XMLName  xml.Name
	Body     string       `xml:",chardata"`
	Children []xmlElement `xml:",any"`
}

type xmlDoc struct {
	XMLName  xml.Name     `xml:"config"`
	Children []xmlElement `xml:",any"`
}

func toXML(n *tree.EditNode) xmlElement {
	e := xmlElement{XMLName: xml.Name{Local: localOrDefault(n)}, Body: n.Body}
	for _, c := range n.Children {
		e.Children = append(e.Children, toXML(c))
	}
	return e
}

func localOrDefault(n *tree.EditNode) string {
	if n.Name.Local == "" {
		return "config"
	}
	return n.Name.Local
}

func fromXML(e xmlElement) *tree.EditNode {
	n := &tree.EditNode{Name: tree.QName{Local: e.XMLName.Local}, Body: trimBody(e)}
	for _, c := range e.Children {
		n.Children = append(n.Children, fromXML(c))
	}
	return n
}

// trimBody strips the whitespace xml/encoding leaves around chardata when
// an element has children (body-only leaves keep their literal text).
func trimBody(e xmlElement) string {
	if len(e.Children) > 0 {
		return ""
	}
	return e.Body
}

// Load reads name's file and returns its contents as a detached tree, or
// an empty tree if the file does not exist yet (a brand-new datastore is
// legitimately absent on disk until first Store).
func (s *Store) Load(name tree.Name) (*tree.EditNode, *mgmterror.Error) {
	data, err := os.ReadFile(s.path(name))
	if os.IsNotExist(err) {
		return &tree.EditNode{Name: tree.QName{Local: "config"}}, nil
	}
	if err != nil {
		s.Log.Error().Err(err).Str("datastore", string(name)).Msg("load failed")
		return nil, mgmterror.NewOperationFailedApplicationError("failed to read datastore file")
	}
	var doc xmlDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		s.Log.Error().Err(err).Str("datastore", string(name)).Msg("corrupt datastore file")
		return nil, mgmterror.NewOperationFailedApplicationError("corrupt datastore file")
	}
	root := &tree.EditNode{Name: tree.QName{Local: "config"}}
	for _, c := range doc.Children {
		root.Children = append(root.Children, fromXML(c))
	}
	return root, nil
}

// Store writes name's contents atomically: write-temp, fsync, rename. A
// failure at any step leaves the previous file intact.
func (s *Store) Store(name tree.Name, contents *tree.EditNode) *mgmterror.Error {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return mgmterror.NewOperationFailedApplicationError("cannot create datastore directory")
	}
	doc := xmlDoc{}
	for _, c := range contents.Children {
		doc.Children = append(doc.Children, toXML(c))
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return mgmterror.NewOperationFailedApplicationError("failed to serialize datastore")
	}

	final := s.path(name)
	tmp := final + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return mgmterror.NewOperationFailedApplicationError("failed to open temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return mgmterror.NewOperationFailedApplicationError("failed to write temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return mgmterror.NewOperationFailedApplicationError("failed to fsync temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return mgmterror.NewOperationFailedApplicationError("failed to close temp file")
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return mgmterror.NewOperationFailedApplicationError("failed to rename temp file")
	}
	s.Log.Debug().Str("datastore", string(name)).Int("bytes", len(data)).Msg("persisted datastore")
	return nil
}

// Reset truncates name's on-disk file to an empty <config/> document but
// keeps the file present,
func (s *Store) Reset(name tree.Name) *mgmterror.Error {
	return s.Store(name, &tree.EditNode{Name: tree.QName{Local: "config"}})
}

// Exists reports whether name has a persisted file on disk.
func (s *Store) Exists(name tree.Name) bool {
	_, err := os.Stat(s.path(name))
	return err == nil
}

// RoundTrip loads name back from disk and re-serializes it, used to verify
// that the persisted file round-trips byte-for-byte.
func (s *Store) RoundTrip(name tree.Name) ([]byte, []byte, *mgmterror.Error) {
	original, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, nil, mgmterror.NewOperationFailedApplicationError(fmt.Sprintf("cannot read %s", name))
	}
	loaded, lerr := s.Load(name)
	if lerr != nil {
		return nil, nil, lerr
	}
	doc := xmlDoc{}
	for _, c := range loaded.Children {
		doc.Children = append(doc.Children, toXML(c))
	}
	reserialized, merr := xml.MarshalIndent(doc, "", "  ")
	if merr != nil {
		return nil, nil, mgmterror.NewOperationFailedApplicationError("failed to re-serialize")
	}
	return original, reserialized, nil
}

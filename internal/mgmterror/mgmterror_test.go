// SPDX-License-Identifier: LGPL-2.1-only

package mgmterror

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusAccessDeniedDependsOnAuthentication(t *testing.T) {
	err := newErr(TypeApplication, TagAccessDenied, "denied")

	status, allow := err.HTTPStatus(false)
	require.Equal(t, 401, status)
	require.Empty(t, allow)

	status, allow = err.HTTPStatus(true)
	require.Equal(t, 403, status)
	require.Empty(t, allow)
}

func TestHTTPStatusOperationNotSupportedSetsAllow(t *testing.T) {
	err := newErr(TypeApplication, TagOperationNotSupported, "nope")
	status, allow := err.HTTPStatus(true)
	require.Equal(t, 405, status)
	require.NotEmpty(t, allow)
}

func TestHTTPStatusLockDeniedIsConflict(t *testing.T) {
	err := newErr(TypeApplication, TagLockDenied, "locked")
	status, _ := err.HTTPStatus(true)
	require.Equal(t, 409, status)
}

func TestErrorStringIncludesPathWhenSet(t *testing.T) {
	err := NewMissingElementError("/interfaces/interface")
	require.Contains(t, err.Error(), "/interfaces/interface")
	require.Contains(t, err.Error(), string(TagMissingElement))
}

func TestListErrorJoinsEachRecord(t *testing.T) {
	list := List{
		NewInvalidValueError("bad value"),
		NewMissingElementError("/a/b"),
	}
	require.Contains(t, list.Error(), "bad value")
	require.Contains(t, list.Error(), "/a/b")
}

// SPDX-License-Identifier: LGPL-2.1-only

package netconf

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkedRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, WriteMessage(&buf, ModeChunked, []byte("<rpc/>")))

	got, err := ReadMessage(bufio.NewReader(&buf), ModeChunked)
	require.Nil(t, err)
	require.Equal(t, "<rpc/>", string(got))
}

func TestChunkedReadsMultipleChunks(t *testing.T) {
	raw := "\n#3\nabc\n#2\nde\n##\n"
	got, err := ReadMessage(bufio.NewReader(bytes.NewBufferString(raw)), ModeChunked)
	require.Nil(t, err)
	require.Equal(t, "abcde", string(got))
}

func TestChunkedMultipleMessagesOnOneConn(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, WriteMessage(&buf, ModeChunked, []byte("one")))
	require.Nil(t, WriteMessage(&buf, ModeChunked, []byte("two")))

	r := bufio.NewReader(&buf)
	first, err := ReadMessage(r, ModeChunked)
	require.Nil(t, err)
	require.Equal(t, "one", string(first))

	second, err := ReadMessage(r, ModeChunked)
	require.Nil(t, err)
	require.Equal(t, "two", string(second))
}

func TestChunkedMalformedHeader(t *testing.T) {
	_, err := ReadMessage(bufio.NewReader(bytes.NewBufferString("\n#x\n")), ModeChunked)
	require.NotNil(t, err)
}

func TestEOMRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.Nil(t, WriteMessage(&buf, ModeEOM, []byte("<rpc/>")))

	got, err := ReadMessage(bufio.NewReader(&buf), ModeEOM)
	require.Nil(t, err)
	require.Equal(t, "<rpc/>", string(got))
}

package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSummary(t *testing.T) {
	in := strings.Join([]string{
		`{"msg":"added","collection":"posts","id":"p1","fields":{"title":"hello"}}`,
		``,
		`{"msg":"result","id":"1","error":{"error":"403","reason":"denied"}}`,
		`not json`,
		`{"msg":"surprise"}`,
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, decodeStream(strings.NewReader(in), &out, nil))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	assert.True(t, strings.HasPrefix(lines[0], "added\t{"))
	assert.NotContains(t, lines[0], "error=")

	assert.True(t, strings.HasPrefix(lines[1], "result\t"))
	assert.Contains(t, lines[1], `error="denied [403]"`)
	assert.Contains(t, lines[1], "auth=true")

	assert.True(t, strings.HasPrefix(lines[2], "error\t"))
	assert.Contains(t, lines[2], `error="Parse error"`)
	assert.NotContains(t, lines[2], "auth=true")

	assert.Equal(t, "unhandled\t{\"msg\":\"surprise\"}", lines[3])
}

func TestDecodeWithJQ(t *testing.T) {
	code, err := compileJQ(`select(.msg == "added") | .fields.title`)
	require.NoError(t, err)

	in := `{"msg":"added","collection":"posts","id":"p1","fields":{"title":"hello"}}
{"msg":"ping"}
{"msg":"added","collection":"posts","id":"p2","fields":{"title":"world"}}
`
	var out bytes.Buffer
	require.NoError(t, decodeStream(strings.NewReader(in), &out, code))
	assert.Equal(t, "\"hello\"\n\"world\"\n", out.String())
}

func TestDecodeJQErrors(t *testing.T) {
	_, err := compileJQ(`.[`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jq expression")

	code, err := compileJQ(`error("boom")`)
	require.NoError(t, err)

	var out bytes.Buffer
	err = decodeStream(strings.NewReader(`{"msg":"ping"}`), &out, code)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq:")
}

func TestParseParams(t *testing.T) {
	params := parseParams([]string{`1`, `"quoted"`, `plain`, `{"a":true}`, `[1,2]`})
	assert.Equal(t, []any{
		float64(1),
		"quoted",
		"plain",
		map[string]any{"a": true},
		[]any{float64(1), float64(2)},
	}, params)

	assert.Empty(t, parseParams(nil))
}

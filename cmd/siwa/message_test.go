package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/siwa/core"
	"github.com/layer-3/siwa/message"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	messageFlags.file, messageFlags.legacy = "", false

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

var cliInput = core.SignInInput{
	Domain:  "example.com",
	Address: "0x1",
	URI:     core.String("https://example.com"),
	Version: "1",
	ChainID: "aptos:mainnet",
	Nonce:   core.String("abc12345"),
}

func TestMessageCreateAndParse(t *testing.T) {
	raw, err := json.Marshal(cliInput)
	require.NoError(t, err)

	text, err := run(t, string(raw), "message", "create")
	require.NoError(t, err)
	assert.Equal(t, message.Create(cliInput)+"\n", text)

	parsed, err := run(t, text, "message", "parse")
	require.NoError(t, err)

	var got core.SignInInput
	require.NoError(t, json.Unmarshal([]byte(parsed), &got))
	assert.Equal(t, cliInput.Domain, got.Domain)
	assert.Equal(t, cliInput.Address, got.Address)
	assert.Equal(t, *cliInput.Nonce, *got.Nonce)
}

func TestMessageCreateLegacy(t *testing.T) {
	raw, err := json.Marshal(cliInput)
	require.NoError(t, err)

	text, err := run(t, string(raw), "message", "create", "--legacy")
	require.NoError(t, err)
	assert.Equal(t, message.CreateLegacy(cliInput)+"\n", text)
}

func TestMessageParse_Invalid(t *testing.T) {
	_, err := run(t, "hello", "message", "parse")
	assert.ErrorIs(t, err, core.ErrVerificationFailed)
}

func TestMessageSigning(t *testing.T) {
	text := message.Create(cliInput)

	out, err := run(t, text+"\n", "message", "signing")
	require.NoError(t, err)
	assert.Equal(t, hexutil.Encode(message.SigningMessage(text))+"\n", out)
}

package tools_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"testing"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers raw commands with reply, or signs them with key when reply is nil.
type fakeTransport struct {
	key      *ecdsa.PrivateKey
	reply    *tools.HSMReply
	err      error
	commands []tools.HSMCommand
}

func (f *fakeTransport) Transact(_ context.Context, request []byte) ([]byte, error) {
	var command tools.HSMCommand
	if err := command.UnmarshalBinary(request); err != nil {
		return nil, err
	}
	f.commands = append(f.commands, command)
	if f.err != nil {
		return nil, f.err
	}
	if f.reply != nil {
		return f.reply.MarshalBinary()
	}
	r, s, err := ecdsa.Sign(rand.Reader, f.key, command.Plain.Data)
	if err != nil {
		return nil, err
	}
	size := (f.key.Curve.Params().BitSize + 7) / 8
	raw := make([]byte, 2*size)
	r.FillBytes(raw[:size])
	s.FillBytes(raw[size:])
	reply := &tools.HSMReply{Cmd: command.Cmd, Sig: tools.TaggedBuffer{Tag: tools.TagSignature, Data: raw}}
	return reply.MarshalBinary()
}

func newFakeTransport(t *testing.T) *fakeTransport {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &fakeTransport{key: key}
}

func TestHSMClient_Sign(t *testing.T) {
	transport := newFakeTransport(t)
	client := &tools.HSMClient{Transport: transport, Log: Log, Debug: true}
	digest := sha256.Sum256([]byte(helloWorld))

	sig, err := client.Sign(context.Background(), 42, digest[:], "")
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(&transport.key.PublicKey, digest[:], sig))

	require.Len(t, transport.commands, 1)
	command := transport.commands[0]
	assert.Equal(t, tools.CmdSign, command.Cmd)
	assert.Equal(t, uint32(0), command.Flags)
	assert.Equal(t, uint64(42), command.Key)
	assert.Equal(t, tools.MechECDSAhSHA256, command.Mech)
	assert.Equal(t, tools.TagPlainHash, command.Plain.Tag)
	assert.Equal(t, digest[:], command.Plain.Data)
}

func TestHSMClient_SignSHA512(t *testing.T) {
	transport := newFakeTransport(t)
	client := &tools.HSMClient{Transport: transport}
	digest := sha512.Sum512([]byte(helloWorld))

	sig, err := client.Sign(context.Background(), 1, digest[:], "ECDSAhSHA512")
	require.NoError(t, err)
	assert.True(t, ecdsa.VerifyASN1(&transport.key.PublicKey, digest[:], sig))
	assert.Equal(t, tools.MechECDSAhSHA512, transport.commands[0].Mech)
}

func TestHSMClient_InvalidInputNeverReachesTransport(t *testing.T) {
	transport := newFakeTransport(t)
	client := &tools.HSMClient{Transport: transport}
	digest := sha256.Sum256([]byte(helloWorld))
	var confErr *tools.ConfigurationError

	sig, err := client.Sign(context.Background(), 1, digest[:], "ECDSAhMD5")
	require.ErrorAs(t, err, &confErr)
	assert.Nil(t, sig)

	_, err = client.Sign(context.Background(), 1, digest[:], "ECDSAhSHA384")
	require.ErrorAs(t, err, &confErr)

	_, err = client.Sign(context.Background(), 1, nil, "")
	require.ErrorAs(t, err, &confErr)

	assert.Empty(t, transport.commands)
}

func TestHSMClient_ProtocolErrors(t *testing.T) {
	digest := sha256.Sum256([]byte(helloWorld))
	raw := make([]byte, 64)
	raw[31], raw[63] = 1, 1

	for name, test := range map[string]struct {
		reply  tools.HSMReply
		status uint32
	}{
		"opcode mismatch": {reply: tools.HSMReply{Cmd: 56, Sig: tools.TaggedBuffer{Tag: tools.TagSignature, Data: raw}}},
		"status":          {reply: tools.HSMReply{Cmd: tools.CmdSign, Status: 0x68}, status: 0x68},
		"tag":             {reply: tools.HSMReply{Cmd: tools.CmdSign, Sig: tools.TaggedBuffer{Tag: tools.TagPlainHash, Data: raw}}},
		"odd signature":   {reply: tools.HSMReply{Cmd: tools.CmdSign, Sig: tools.TaggedBuffer{Tag: tools.TagSignature, Data: raw[:63]}}},
	} {
		t.Run(name, func(t *testing.T) {
			reply := test.reply
			transport := &fakeTransport{reply: &reply}
			client := &tools.HSMClient{Transport: transport}

			sig, err := client.Sign(context.Background(), 9, digest[:], "")
			var protoErr *tools.ProtocolError
			require.ErrorAs(t, err, &protoErr)
			assert.Nil(t, sig)
			assert.Equal(t, tools.CmdSign, protoErr.Cmd)
			assert.Equal(t, test.status, protoErr.Status)
			assert.Len(t, transport.commands, 1)
		})
	}
}

func TestHSMClient_TransportError(t *testing.T) {
	failure := errors.New("connection reset")
	transport := &fakeTransport{err: failure}
	client := &tools.HSMClient{Transport: transport}
	digest := sha256.Sum256([]byte(helloWorld))

	sig, err := client.Sign(context.Background(), 9, digest[:], "")
	var transportErr *tools.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.ErrorIs(t, err, failure)
	assert.Nil(t, sig)
	assert.Len(t, transport.commands, 1, "commands are not retried")
}

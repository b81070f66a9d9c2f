package tools_test

import (
	"bytes"
	"testing"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHSMCommand_MarshalBinary(t *testing.T) {
	command := &tools.HSMCommand{
		Cmd:   tools.CmdSign,
		Flags: 0,
		Key:   0x0102030405060708,
		Mech:  tools.MechECDSAhSHA384,
		Plain: tools.TaggedBuffer{Tag: tools.TagPlainHash, Data: []byte{0xaa, 0xbb}},
	}
	frame, err := command.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 0, 0, 55,
		0, 0, 0, 0,
		1, 2, 3, 4, 5, 6, 7, 8,
		0, 0, 0, byte(tools.MechECDSAhSHA384),
		0, 0, 0, 93,
		0, 0, 0, 2,
		0xaa, 0xbb,
	}, frame)

	var decoded tools.HSMCommand
	require.NoError(t, decoded.UnmarshalBinary(frame))
	assert.Equal(t, *command, decoded)
}

func TestHSMCommand_UnmarshalErrors(t *testing.T) {
	command := &tools.HSMCommand{Cmd: tools.CmdSign, Plain: tools.TaggedBuffer{Tag: tools.TagPlainHash, Data: []byte{1, 2, 3}}}
	frame, err := command.MarshalBinary()
	require.NoError(t, err)

	var decoded tools.HSMCommand
	assert.Error(t, decoded.UnmarshalBinary(frame[:10]), "short header")
	assert.Error(t, decoded.UnmarshalBinary(frame[:len(frame)-1]), "short data")
	assert.Error(t, decoded.UnmarshalBinary(append(frame, 0)), "trailing data")

	huge := &tools.HSMCommand{Plain: tools.TaggedBuffer{Data: make([]byte, tools.MaxBufferLen+1)}}
	_, err = huge.MarshalBinary()
	assert.Error(t, err)
}

func TestHSMReply_Binary(t *testing.T) {
	reply := &tools.HSMReply{
		Cmd:    tools.CmdSign,
		Status: tools.StatusOK,
		Sig:    tools.TaggedBuffer{Tag: tools.TagSignature, Data: bytes.Repeat([]byte{7}, 64)},
	}
	frame, err := reply.MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, frame, 16+64)
	assert.Equal(t, []byte{0, 0, 0, 185}, frame[8:12])

	var decoded tools.HSMReply
	require.NoError(t, decoded.UnmarshalBinary(frame))
	assert.Equal(t, *reply, decoded)

	empty := []byte{0, 0, 0, 55, 0, 0, 0, 6, 0, 0, 0, 0, 0, 0, 0, 0}
	require.NoError(t, decoded.UnmarshalBinary(empty))
	assert.Equal(t, uint32(6), decoded.Status)
	assert.Empty(t, decoded.Sig.Data)

	assert.Error(t, decoded.UnmarshalBinary(empty[:15]))
}

func TestParseMechanism(t *testing.T) {
	mech, err := tools.ParseMechanism("")
	require.NoError(t, err)
	assert.Equal(t, tools.MechECDSAhSHA256, mech)
	assert.Equal(t, 32, mech.DigestSize())
	assert.Equal(t, "ECDSAhSHA256", mech.String())

	mech, err = tools.ParseMechanism("ECDSAhSHA512")
	require.NoError(t, err)
	assert.Equal(t, 64, mech.DigestSize())

	var confErr *tools.ConfigurationError
	_, err = tools.ParseMechanism("ECDSAhSHA1")
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "mechanism", confErr.Kind)
	assert.Equal(t, 0, tools.Mechanism(99).DigestSize())
}

package tools

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
)

// Transport carries raw command frames to the HSM and returns the reply frame.
type Transport interface {
	Transact(ctx context.Context, request []byte) ([]byte, error)
}

// HSMClient signs pre-hashed data with the raw command protocol.
type HSMClient struct {
	Transport Transport
	Log       *log.Logger
	Debug     bool // logs every command with a correlation id
}

// Sign signs digest with the key identified by key. mechanism selects the digest the
// HSM expects and defaults to ECDSAhSHA256. The signature is returned ASN.1 encoded.
// Commands are sent once, failures are not retried.
func (c *HSMClient) Sign(ctx context.Context, key uint64, digest []byte, mechanism string) ([]byte, error) {
	mech, err := ParseMechanism(mechanism)
	if err != nil {
		return nil, err
	}
	if len(digest) != mech.DigestSize() {
		return nil, &ConfigurationError{
			Kind:  "digest length for " + mech.String(),
			Value: fmt.Sprintf("%d", len(digest)),
		}
	}
	if c.Transport == nil {
		return nil, fmt.Errorf("hsm client has no transport")
	}
	command := &HSMCommand{
		Cmd:   CmdSign,
		Flags: 0,
		Key:   key,
		Mech:  mech,
		Plain: TaggedBuffer{Tag: TagPlainHash, Data: digest},
	}
	request, err := command.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var id string
	if c.Debug && c.Log != nil {
		id = uuid.NewString()
		c.Log.Printf("[%s] cmd=%d key=%d mech=%s request=%d bytes", id, command.Cmd, key, mech, len(request))
	}
	response, err := c.Transport.Transact(ctx, request)
	if err != nil {
		return nil, &TransportError{Cmd: command.Cmd, Err: err}
	}
	if len(id) > 0 {
		c.Log.Printf("[%s] reply=%d bytes", id, len(response))
	}
	var reply HSMReply
	if err := reply.UnmarshalBinary(response); err != nil {
		return nil, &ProtocolError{Cmd: command.Cmd, Reason: err.Error()}
	}
	if reply.Cmd != command.Cmd {
		return nil, &ProtocolError{
			Cmd:    command.Cmd,
			Reason: fmt.Sprintf("reply is for cmd %d", reply.Cmd),
		}
	}
	if reply.Status != StatusOK {
		return nil, &ProtocolError{Cmd: command.Cmd, Status: reply.Status, Reason: "command failed"}
	}
	if reply.Sig.Tag != TagSignature {
		return nil, &ProtocolError{
			Cmd:    command.Cmd,
			Reason: fmt.Sprintf("unexpected buffer tag %d", reply.Sig.Tag),
		}
	}
	sig, err := rawToASN1(reply.Sig.Data)
	if err != nil {
		return nil, &ProtocolError{Cmd: command.Cmd, Reason: err.Error()}
	}
	return sig, nil
}

package tools

import (
	"context"

	"github.com/miekg/pkcs11"
)

// PKCS11Transport executes raw commands with the signing primitive of a PKCS#11
// session. Token failures are reported in the reply status, never as Go errors.
type PKCS11Transport struct {
	Session *PKCS11Session
}

// Transact decodes request, signs its plain buffer with CKM_ECDSA and encodes the reply.
func (t *PKCS11Transport) Transact(ctx context.Context, request []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var command HSMCommand
	if err := command.UnmarshalBinary(request); err != nil {
		return nil, err
	}
	reply := HSMReply{Cmd: command.Cmd}
	switch {
	case command.Cmd != CmdSign:
		reply.Status = pkcs11.CKR_FUNCTION_NOT_SUPPORTED
	case command.Plain.Tag != TagPlainHash:
		reply.Status = pkcs11.CKR_ARGUMENTS_BAD
	case command.Mech.DigestSize() == 0:
		reply.Status = pkcs11.CKR_MECHANISM_INVALID
	case len(command.Plain.Data) != command.Mech.DigestSize():
		reply.Status = pkcs11.CKR_DATA_LEN_RANGE
	default:
		sig, err := t.Session.sign(pkcs11.CKM_ECDSA, pkcs11.ObjectHandle(command.Key), command.Plain.Data)
		if err != nil {
			reply.Status = statusOf(err)
			break
		}
		reply.Sig = TaggedBuffer{Tag: TagSignature, Data: sig}
	}
	return reply.MarshalBinary()
}

func statusOf(err error) uint32 {
	if perr, ok := err.(pkcs11.Error); ok {
		return uint32(perr)
	}
	return pkcs11.CKR_GENERAL_ERROR
}

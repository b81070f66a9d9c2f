package tools

import (
	"crypto"
	"encoding/binary"
	"fmt"
)

// Opcodes, tags and statuses of the raw HSM command protocol.
const (
	CmdSign      uint32 = 55
	TagPlainHash uint32 = 93
	TagSignature uint32 = 185
	StatusOK     uint32 = 0
)

// MaxBufferLen limits the data carried by a single tagged buffer.
const MaxBufferLen = 1 << 16

const (
	commandHeaderLen = 4 + 4 + 8 + 4 + 4 + 4
	replyHeaderLen   = 4 + 4 + 4 + 4
)

// Mechanism is a pre-hashed signing mechanism understood by the HSM.
type Mechanism uint32

const (
	MechECDSAhSHA256 Mechanism = iota + 1
	MechECDSAhSHA384
	MechECDSAhSHA512
)

// DefaultMechanism is used when no mechanism name is given.
const DefaultMechanism = "ECDSAhSHA256"

// StringToMechanism takes the name of a mechanism
var StringToMechanism = map[string]Mechanism{
	"ECDSAhSHA256": MechECDSAhSHA256,
	"ECDSAhSHA384": MechECDSAhSHA384,
	"ECDSAhSHA512": MechECDSAhSHA512,
}

var mechanismHash = map[Mechanism]crypto.Hash{
	MechECDSAhSHA256: crypto.SHA256,
	MechECDSAhSHA384: crypto.SHA384,
	MechECDSAhSHA512: crypto.SHA512,
}

// ParseMechanism converts a mechanism name into its code. An empty name means
// DefaultMechanism.
func ParseMechanism(name string) (Mechanism, error) {
	if len(name) == 0 {
		name = DefaultMechanism
	}
	mech, ok := StringToMechanism[name]
	if !ok {
		return 0, &ConfigurationError{Kind: "mechanism", Value: name}
	}
	return mech, nil
}

// DigestSize returns the digest length the mechanism signs, or zero if it is unknown.
func (m Mechanism) DigestSize() int {
	if h, ok := mechanismHash[m]; ok {
		return h.Size()
	}
	return 0
}

func (m Mechanism) String() string {
	for name, mech := range StringToMechanism {
		if mech == m {
			return name
		}
	}
	return fmt.Sprintf("mechanism(%d)", uint32(m))
}

// TaggedBuffer is a byte buffer labelled with a protocol tag.
type TaggedBuffer struct {
	Tag  uint32
	Data []byte
}

// HSMCommand is a raw command sent to the HSM.
type HSMCommand struct {
	Cmd   uint32
	Flags uint32
	Key   uint64 // key handle on the HSM
	Mech  Mechanism
	Plain TaggedBuffer
}

// HSMReply is the answer to an HSMCommand.
type HSMReply struct {
	Cmd    uint32
	Status uint32
	Sig    TaggedBuffer
}

// MarshalBinary encodes the command as
// cmd | flags | key | mech | tag | len | data, all integers big endian.
func (c *HSMCommand) MarshalBinary() ([]byte, error) {
	if len(c.Plain.Data) > MaxBufferLen {
		return nil, fmt.Errorf("plain buffer too long (%d bytes)", len(c.Plain.Data))
	}
	b := make([]byte, commandHeaderLen, commandHeaderLen+len(c.Plain.Data))
	binary.BigEndian.PutUint32(b[0:], c.Cmd)
	binary.BigEndian.PutUint32(b[4:], c.Flags)
	binary.BigEndian.PutUint64(b[8:], c.Key)
	binary.BigEndian.PutUint32(b[16:], uint32(c.Mech))
	binary.BigEndian.PutUint32(b[20:], c.Plain.Tag)
	binary.BigEndian.PutUint32(b[24:], uint32(len(c.Plain.Data)))
	return append(b, c.Plain.Data...), nil
}

// UnmarshalBinary decodes a command encoded by MarshalBinary.
func (c *HSMCommand) UnmarshalBinary(b []byte) error {
	if len(b) < commandHeaderLen {
		return fmt.Errorf("command too short (%d bytes)", len(b))
	}
	data, err := readBuffer(b[24:])
	if err != nil {
		return err
	}
	c.Cmd = binary.BigEndian.Uint32(b[0:])
	c.Flags = binary.BigEndian.Uint32(b[4:])
	c.Key = binary.BigEndian.Uint64(b[8:])
	c.Mech = Mechanism(binary.BigEndian.Uint32(b[16:]))
	c.Plain = TaggedBuffer{Tag: binary.BigEndian.Uint32(b[20:]), Data: data}
	return nil
}

// MarshalBinary encodes the reply as cmd | status | tag | len | data.
func (r *HSMReply) MarshalBinary() ([]byte, error) {
	if len(r.Sig.Data) > MaxBufferLen {
		return nil, fmt.Errorf("signature buffer too long (%d bytes)", len(r.Sig.Data))
	}
	b := make([]byte, replyHeaderLen, replyHeaderLen+len(r.Sig.Data))
	binary.BigEndian.PutUint32(b[0:], r.Cmd)
	binary.BigEndian.PutUint32(b[4:], r.Status)
	binary.BigEndian.PutUint32(b[8:], r.Sig.Tag)
	binary.BigEndian.PutUint32(b[12:], uint32(len(r.Sig.Data)))
	return append(b, r.Sig.Data...), nil
}

// UnmarshalBinary decodes a reply encoded by MarshalBinary.
func (r *HSMReply) UnmarshalBinary(b []byte) error {
	if len(b) < replyHeaderLen {
		return fmt.Errorf("reply too short (%d bytes)", len(b))
	}
	data, err := readBuffer(b[12:])
	if err != nil {
		return err
	}
	r.Cmd = binary.BigEndian.Uint32(b[0:])
	r.Status = binary.BigEndian.Uint32(b[4:])
	r.Sig = TaggedBuffer{Tag: binary.BigEndian.Uint32(b[8:]), Data: data}
	return nil
}

// readBuffer reads a length prefixed buffer that must span the rest of b.
func readBuffer(b []byte) ([]byte, error) {
	n := binary.BigEndian.Uint32(b)
	if n > MaxBufferLen {
		return nil, fmt.Errorf("buffer length %d over limit", n)
	}
	if uint32(len(b)-4) != n {
		return nil, fmt.Errorf("buffer length %d does not match %d remaining bytes", n, len(b)-4)
	}
	data := make([]byte, n)
	copy(data, b[4:])
	return data, nil
}

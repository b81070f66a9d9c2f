package tools

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/cryptobyte/asn1"
)

// marshalSignature encodes r and s as an ASN.1 ECDSA-Sig-Value.
func marshalSignature(r, s *big.Int) ([]byte, error) {
	var b cryptobyte.Builder
	b.AddASN1(asn1.SEQUENCE, func(b *cryptobyte.Builder) {
		b.AddASN1BigInt(r)
		b.AddASN1BigInt(s)
	})
	return b.Bytes()
}

// parseSignature decodes an ASN.1 ECDSA-Sig-Value. Both values must be positive.
func parseSignature(sig []byte) (r, s *big.Int, err error) {
	var inner cryptobyte.String
	r, s = new(big.Int), new(big.Int)
	input := cryptobyte.String(sig)
	if !input.ReadASN1(&inner, asn1.SEQUENCE) ||
		!input.Empty() ||
		!inner.ReadASN1Integer(r) ||
		!inner.ReadASN1Integer(s) ||
		!inner.Empty() {
		return nil, nil, fmt.Errorf("invalid ASN.1 signature")
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return nil, nil, fmt.Errorf("signature values must be positive")
	}
	return r, s, nil
}

// rawToASN1 transforms a PKCS#11 style r||s signature into ASN.1.
func rawToASN1(raw []byte) ([]byte, error) {
	if len(raw) == 0 || len(raw)%2 != 0 {
		return nil, fmt.Errorf("raw signature has odd or zero length (%d)", len(raw))
	}
	half := len(raw) / 2
	r, s := new(big.Int).SetBytes(raw[:half]), new(big.Int).SetBytes(raw[half:])
	return marshalSignature(r, s)
}

// asn1ToRaw transforms an ASN.1 signature into r||s, each value padded to size bytes.
func asn1ToRaw(sig []byte, size int) ([]byte, error) {
	r, s, err := parseSignature(sig)
	if err != nil {
		return nil, err
	}
	if (r.BitLen()+7)/8 > size || (s.BitLen()+7)/8 > size {
		return nil, fmt.Errorf("signature values longer than %d bytes", size)
	}
	raw := make([]byte, 2*size)
	r.FillBytes(raw[:size])
	s.FillBytes(raw[size:])
	return raw, nil
}

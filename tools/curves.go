package tools

import "encoding/asn1"

// NamedCurve is the curve found in the key material.
type NamedCurve uint8

const (
	CurveUnknown NamedCurve = iota
	Secp256r1
	Secp384r1
	Secp521r1
	Secp256k1
)

var (
	oidPublicKeyECDSA      = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidNamedCurveP256      = asn1.ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	oidNamedCurveP384      = asn1.ObjectIdentifier{1, 3, 132, 0, 34}
	oidNamedCurveP521      = asn1.ObjectIdentifier{1, 3, 132, 0, 35}
	oidNamedCurveSecp256k1 = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type curveParams struct {
	name string
	oid  asn1.ObjectIdentifier
	size int // field and scalar size in bytes
}

var namedCurves = map[NamedCurve]curveParams{
	Secp256r1: {"secp256r1", oidNamedCurveP256, 32},
	Secp384r1: {"secp384r1", oidNamedCurveP384, 48},
	Secp521r1: {"secp521r1", oidNamedCurveP521, 66},
	Secp256k1: {"secp256k1", oidNamedCurveSecp256k1, 32},
}

func namedCurveFromOID(oid asn1.ObjectIdentifier) NamedCurve {
	for curve, params := range namedCurves {
		if params.oid.Equal(oid) {
			return curve
		}
	}
	return CurveUnknown
}

func (c NamedCurve) String() string {
	if params, ok := namedCurves[c]; ok {
		return params.name
	}
	return "unknown"
}

// OID returns the object identifier of the curve, or nil if unknown.
func (c NamedCurve) OID() asn1.ObjectIdentifier {
	return namedCurves[c].oid
}

// ByteSize returns the size of a scalar of the curve.
func (c NamedCurve) ByteSize() int {
	return namedCurves[c].size
}

// ECParams returns the DER encoded parameters used by CKA_EC_PARAMS.
func (c NamedCurve) ECParams() ([]byte, error) {
	return asn1.Marshal(c.OID())
}

// MaxSignatureLen is the longest ASN.1 ECDSA-Sig-Value a key on this curve can produce.
func (c NamedCurve) MaxSignatureLen() int {
	// INTEGER with a possible leading zero byte.
	intLen := 2 + c.ByteSize() + 1
	body := 2 * intLen
	if body < 128 {
		return 2 + body
	}
	return 3 + body
}

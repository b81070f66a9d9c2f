package tools

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"io"
	"io/fs"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// keyFactories are the key-factory algorithm names accepted by the loader.
// All of them build keys from id-ecPublicKey material.
var keyFactories = map[string]asn1.ObjectIdentifier{
	"EC":    oidPublicKeyECDSA,
	"ECDSA": oidPublicKeyECDSA,
}

// pkcs8 reflects an ASN.1, PKCS #8 PrivateKey. Optional attributes are ignored.
type pkcs8 struct {
	Version    int
	Algo       pkix.AlgorithmIdentifier
	PrivateKey []byte
}

// ecPrivateKey reflects an ASN.1 Elliptic Curve Private Key Structure (RFC 5915).
type ecPrivateKey struct {
	Version       int
	PrivateKey    []byte
	NamedCurveOID asn1.ObjectIdentifier `asn1:"optional,explicit,tag:0"`
	PublicKey     asn1.BitString        `asn1:"optional,explicit,tag:1"`
}

type subjectPublicKeyInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	PublicKey asn1.BitString
}

// PrivateKey is a curve-typed EC private key. It is immutable once loaded.
type PrivateKey struct {
	curve NamedCurve
	nist  *ecdsa.PrivateKey
	k1    *secp256k1.PrivateKey
}

// PublicKey is a curve-typed EC public key. It is immutable once loaded.
type PublicKey struct {
	curve NamedCurve
	nist  *ecdsa.PublicKey
	k1    *secp256k1.PublicKey
}

// KeyPair contains the keys owned by one engine.
type KeyPair struct {
	Public  *PublicKey
	Private *PrivateKey // nil when the private key lives in a token
}

// LoadPrivateKey reads a PEM PKCS#8 private key from fsys.
func LoadPrivateKey(fsys fs.FS, name, keyFactory string) (*PrivateKey, error) {
	der, err := readPEM(fsys, name, "PRIVATE KEY")
	if err != nil {
		return nil, &KeyLoadError{Resource: name, Err: err}
	}
	key, err := parsePrivateKey(der, keyFactory)
	if err != nil {
		return nil, &KeyLoadError{Resource: name, Err: err}
	}
	return key, nil
}

// LoadPublicKey reads a PEM X.509 SubjectPublicKeyInfo from fsys.
func LoadPublicKey(fsys fs.FS, name, keyFactory string) (*PublicKey, error) {
	der, err := readPEM(fsys, name, "PUBLIC KEY")
	if err != nil {
		return nil, &KeyLoadError{Resource: name, Err: err}
	}
	key, err := parsePublicKey(der, keyFactory)
	if err != nil {
		return nil, &KeyLoadError{Resource: name, Err: err}
	}
	return key, nil
}

func readPEM(fsys fs.FS, name, blockType string) ([]byte, error) {
	if fsys == nil {
		return nil, fmt.Errorf("no key resources defined")
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, err
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if block.Type != blockType {
		return nil, fmt.Errorf("PEM block is %q, expected %q", block.Type, blockType)
	}
	return block.Bytes, nil
}

// curveFromAlgorithm checks the key algorithm against the key factory and
// returns the curve named in its parameters.
func curveFromAlgorithm(algo pkix.AlgorithmIdentifier, keyFactory string) (NamedCurve, error) {
	expected, ok := keyFactories[keyFactory]
	if !ok {
		return CurveUnknown, fmt.Errorf("unknown key factory %q", keyFactory)
	}
	if !algo.Algorithm.Equal(expected) {
		return CurveUnknown, fmt.Errorf("key algorithm %s does not match key factory %s", algo.Algorithm, keyFactory)
	}
	var oid asn1.ObjectIdentifier
	rest, err := asn1.Unmarshal(algo.Parameters.FullBytes, &oid)
	if err != nil {
		return CurveUnknown, fmt.Errorf("cannot parse curve parameters: %s", err)
	}
	if len(rest) > 0 {
		return CurveUnknown, fmt.Errorf("trailing data after curve parameters")
	}
	curve := namedCurveFromOID(oid)
	if curve == CurveUnknown {
		return CurveUnknown, fmt.Errorf("unsupported curve %s", oid)
	}
	return curve, nil
}

func parsePrivateKey(der []byte, keyFactory string) (*PrivateKey, error) {
	var info pkcs8
	if rest, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("cannot parse PKCS#8: %s", err)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after PKCS#8")
	}
	curve, err := curveFromAlgorithm(info.Algo, keyFactory)
	if err != nil {
		return nil, err
	}
	if curve != Secp256k1 {
		parsed, err := x509.ParsePKCS8PrivateKey(der)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an EC private key")
		}
		return &PrivateKey{curve: curve, nist: key}, nil
	}

	var ecKey ecPrivateKey
	if _, err := asn1.Unmarshal(info.PrivateKey, &ecKey); err != nil {
		return nil, fmt.Errorf("cannot parse EC private key: %s", err)
	}
	if ecKey.Version != 1 {
		return nil, fmt.Errorf("unknown EC private key version %d", ecKey.Version)
	}
	if len(ecKey.NamedCurveOID) > 0 && !ecKey.NamedCurveOID.Equal(oidNamedCurveSecp256k1) {
		return nil, fmt.Errorf("inner curve %s does not match %s", ecKey.NamedCurveOID, curve)
	}
	if len(ecKey.PrivateKey) == 0 || len(ecKey.PrivateKey) > curve.ByteSize() {
		return nil, fmt.Errorf("invalid private key length %d", len(ecKey.PrivateKey))
	}
	var scalar secp256k1.ModNScalar
	if overflow := scalar.SetByteSlice(ecKey.PrivateKey); overflow || scalar.IsZero() {
		return nil, fmt.Errorf("private key out of range")
	}
	key := secp256k1.NewPrivateKey(&scalar)
	if ecKey.PublicKey.BitLength > 0 &&
		!bytes.Equal(ecKey.PublicKey.RightAlign(), key.PubKey().SerializeUncompressed()) {
		return nil, fmt.Errorf("embedded public key does not match private key")
	}
	return &PrivateKey{curve: curve, k1: key}, nil
}

func parsePublicKey(der []byte, keyFactory string) (*PublicKey, error) {
	var info subjectPublicKeyInfo
	if rest, err := asn1.Unmarshal(der, &info); err != nil {
		return nil, fmt.Errorf("cannot parse SubjectPublicKeyInfo: %s", err)
	} else if len(rest) > 0 {
		return nil, fmt.Errorf("trailing data after SubjectPublicKeyInfo")
	}
	curve, err := curveFromAlgorithm(info.Algorithm, keyFactory)
	if err != nil {
		return nil, err
	}
	if curve != Secp256k1 {
		parsed, err := x509.ParsePKIXPublicKey(der)
		if err != nil {
			return nil, err
		}
		key, ok := parsed.(*ecdsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an EC public key")
		}
		return &PublicKey{curve: curve, nist: key}, nil
	}
	key, err := secp256k1.ParsePubKey(info.PublicKey.RightAlign())
	if err != nil {
		return nil, err
	}
	return &PublicKey{curve: curve, k1: key}, nil
}

// Curve returns the curve of the key.
func (k *PrivateKey) Curve() NamedCurve {
	return k.curve
}

// PublicKey returns the public half of the key.
func (k *PrivateKey) PublicKey() *PublicKey {
	if k.k1 != nil {
		return &PublicKey{curve: k.curve, k1: k.k1.PubKey()}
	}
	return &PublicKey{curve: k.curve, nist: &k.nist.PublicKey}
}

// Bytes returns the private scalar, left padded to the curve size. It is the
// value stored in CKA_VALUE when the key is imported into a token.
func (k *PrivateKey) Bytes() []byte {
	out := make([]byte, k.curve.ByteSize())
	if k.k1 != nil {
		b := k.k1.Key.Bytes()
		copy(out[len(out)-len(b):], b[:])
		return out
	}
	return k.nist.D.FillBytes(out)
}

// SignDigest signs digest and returns an ASN.1 signature. secp256k1 signatures
// use RFC 6979 nonces and are deterministic, the NIST curves are not.
func (k *PrivateKey) SignDigest(rand io.Reader, digest []byte) ([]byte, error) {
	if len(digest) == 0 {
		return nil, fmt.Errorf("empty digest")
	}
	if k.k1 != nil {
		return k1ecdsa.Sign(k.k1, digest).Serialize(), nil
	}
	return ecdsa.SignASN1(rand, k.nist, digest)
}

// Curve returns the curve of the key.
func (k *PublicKey) Curve() NamedCurve {
	return k.curve
}

// Crypto returns the key as understood by the underlying library: *ecdsa.PublicKey
// or *secp256k1.PublicKey.
func (k *PublicKey) Crypto() crypto.PublicKey {
	if k.k1 != nil {
		return k.k1
	}
	return k.nist
}

// Bytes returns the uncompressed point 0x04 || X || Y.
func (k *PublicKey) Bytes() ([]byte, error) {
	if k.k1 != nil {
		return k.k1.SerializeUncompressed(), nil
	}
	ecdhKey, err := k.nist.ECDH()
	if err != nil {
		return nil, err
	}
	return ecdhKey.Bytes(), nil
}

// Equal reports whether both keys hold the same point on the same curve.
func (k *PublicKey) Equal(other *PublicKey) bool {
	if other == nil || k.curve != other.curve {
		return false
	}
	a, errA := k.Bytes()
	b, errB := other.Bytes()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// VerifyDigest reports whether sig is a valid ASN.1 signature of digest.
// Unparsable signatures are invalid, not errors.
func (k *PublicKey) VerifyDigest(digest, sig []byte) bool {
	if k.k1 == nil {
		return ecdsa.VerifyASN1(k.nist, digest, sig)
	}
	r, s, err := parseSignature(sig)
	if err != nil {
		return false
	}
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return false
	}
	var rs, ss secp256k1.ModNScalar
	if rs.SetByteSlice(r.Bytes()) || ss.SetByteSlice(s.Bytes()) {
		return false
	}
	return k1ecdsa.NewSignature(&rs, &ss).Verify(digest, k.k1)
}

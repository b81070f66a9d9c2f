package tools

import (
	"context"
	"crypto"
	"fmt"
	"io"

	"github.com/miekg/pkcs11"
)

// hashMechanisms are the hash-then-sign mechanisms used by SignMessage.
var hashMechanisms = map[crypto.Hash]uint{
	crypto.SHA256: pkcs11.CKM_ECDSA_SHA256,
	crypto.SHA384: pkcs11.CKM_ECDSA_SHA384,
	crypto.SHA512: pkcs11.CKM_ECDSA_SHA512,
}

// hashToMechanism maps a digest to the raw protocol mechanism signing it.
var hashToMechanism = map[crypto.Hash]string{
	crypto.SHA256: "ECDSAhSHA256",
	crypto.SHA384: "ECDSAhSHA384",
	crypto.SHA512: "ECDSAhSHA512",
}

// PKCS11Signer represents a signer using a PKCS11 device to sign and store the keys
type PKCS11Signer struct {
	Session *PKCS11Session      // PKCS#11 PKCS11Session
	SK, PK  pkcs11.ObjectHandle // Secret and Public PKCS11Key handles
	Key     *PublicKey          // Public key used to verify
}

// Public returns the public key related to the signer
func (rs *PKCS11Signer) Public() crypto.PublicKey {
	if rs.Key == nil {
		return nil
	}
	return rs.Key.Crypto()
}

// Sign signs a digest through the raw command protocol. The mechanism follows
// opts.HashFunc().
func (rs *PKCS11Signer) Sign(_ io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if rs.Session == nil || rs.Session.client == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	mechanism := rs.Session.Mechanism
	if opts != nil && opts.HashFunc() != 0 {
		var ok bool
		if mechanism, ok = hashToMechanism[opts.HashFunc()]; !ok {
			return nil, &ConfigurationError{Kind: "hash", Value: opts.HashFunc().String()}
		}
	}
	return rs.Session.client.Sign(context.Background(), uint64(rs.SK), digest, mechanism)
}

// sign runs a SignInit/Sign pair with the given mechanism and returns the token output.
func (session *PKCS11Session) sign(mechanism uint, key pkcs11.ObjectHandle, data []byte) ([]byte, error) {
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.P11Context == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	mechanisms := []*pkcs11.Mechanism{
		pkcs11.NewMechanism(mechanism, nil),
	}
	if err := session.P11Context.SignInit(session.Handle, mechanisms, key); err != nil {
		return nil, err
	}
	return session.P11Context.Sign(session.Handle, data)
}

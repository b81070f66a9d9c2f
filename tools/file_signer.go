package tools

import (
	"crypto"
	"fmt"
	"io"
)

type fileSigner struct {
	Session *FileSession
}

func (signer *fileSigner) Public() crypto.PublicKey {
	if signer.Session.Key == nil {
		return nil
	}
	return signer.Session.Key.PublicKey().Crypto()
}

func (signer *fileSigner) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	if signer.Session.Key == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	if opts != nil && opts.HashFunc() != 0 && opts.HashFunc().Size() != len(digest) {
		return nil, fmt.Errorf("digest length %d does not match %s", len(digest), opts.HashFunc())
	}
	if rand == nil {
		rand = signer.Session.rand()
	}
	return signer.Session.Key.SignDigest(rand, digest)
}

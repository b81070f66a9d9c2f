package tools

import (
	"crypto"
	"crypto/rand"
	"fmt"
	"io"
)

// FileSession signs with a private key loaded from a PEM resource.
type FileSession struct {
	Key  *PrivateKey
	Hash crypto.Hash
	Rand io.Reader // defaults to crypto/rand
}

// NewFileSession creates a new File session.
func NewFileSession(key *PrivateKey, hash crypto.Hash) (*FileSession, error) {
	if key == nil {
		return nil, fmt.Errorf("no private key defined")
	}
	if !hash.Available() {
		return nil, &ConfigurationError{Kind: "hash", Value: hash.String()}
	}
	return &FileSession{Key: key, Hash: hash}, nil
}

func (session *FileSession) rand() io.Reader {
	if session.Rand != nil {
		return session.Rand
	}
	return rand.Reader
}

// SignMessage hashes message and signs the digest.
func (session *FileSession) SignMessage(message []byte) ([]byte, error) {
	h := session.Hash.New()
	h.Write(message)
	return session.SignDigest(h.Sum(nil))
}

// SignDigest signs digest as given.
func (session *FileSession) SignDigest(digest []byte) ([]byte, error) {
	if session.Key == nil {
		return nil, fmt.Errorf("session not initialized")
	}
	return session.Key.SignDigest(session.rand(), digest)
}

// Signer returns the session key as a crypto.Signer.
func (session *FileSession) Signer() crypto.Signer {
	return &fileSigner{Session: session}
}

func (session *FileSession) End() error {
	return nil
}

package tools

import "crypto"

// SignSession represents an abstract signing session
type SignSession interface {
	SignMessage(message []byte) ([]byte, error) // hash-then-sign
	SignDigest(digest []byte) ([]byte, error)   // sign a caller supplied digest
	Signer() crypto.Signer
	End() error
}

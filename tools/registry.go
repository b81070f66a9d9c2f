package tools

import (
	"crypto"
	_ "crypto/sha256"
	_ "crypto/sha512"
)

// AlgorithmSet contains the algorithm identifiers a provider uses.
type AlgorithmSet struct {
	HashSignature string `yaml:"hash_signature"` // signs a message, hashing it first
	RawSignature  string `yaml:"raw_signature"`  // signs a caller supplied digest
	Hash          string `yaml:"hash"`           // digest used by HashSignature
	KeyFactory    string `yaml:"key_factory"`    // builds keys from encoded material
}

var providerAlgorithms = map[ProviderID]AlgorithmSet{
	ProviderSoftware: {
		HashSignature: "SHA256withECDSA",
		RawSignature:  "NONEwithECDSA",
		Hash:          "SHA-256",
		KeyFactory:    "EC",
	},
	ProviderHSM: {
		HashSignature: "SHA256withECDSA",
		RawSignature:  "ECDSAhSHA256",
		Hash:          "SHA-256",
		KeyFactory:    "ECDSA",
	},
}

// StringToHash takes the name of a digest algorithm.
var StringToHash = map[string]crypto.Hash{
	"SHA-256": crypto.SHA256,
	"SHA-384": crypto.SHA384,
	"SHA-512": crypto.SHA512,
}

// hashOfSignature returns the digest used by a hash-then-sign algorithm name.
var hashOfSignature = map[string]crypto.Hash{
	"SHA256withECDSA": crypto.SHA256,
	"SHA384withECDSA": crypto.SHA384,
	"SHA512withECDSA": crypto.SHA512,
}

// KeyResources names the PEM resources of a key pair.
type KeyResources struct {
	Private string
	Public  string
}

// DefaultKeyResources binds every curve to the key pair of its nominal curve.
var DefaultKeyResources = map[CurveID]KeyResources{
	P256: {Private: "prime256v1_pkcs8_private.pem", Public: "prime256v1_public.pem"},
	P384: {Private: "secp384r1_pkcs8_private.pem", Public: "secp384r1_public.pem"},
	P521: {Private: "secp521r1_pkcs8_private.pem", Public: "secp521r1_public.pem"},
}

// Registry resolves provider and curve identifiers into algorithms and key resources.
type Registry struct {
	Keys map[CurveID]KeyResources
}

// NewRegistry returns a registry with the default key resources, replaced by
// overrides where they are defined. A partial override keeps the default for the
// missing half.
func NewRegistry(overrides map[CurveID]KeyResources) *Registry {
	keys := make(map[CurveID]KeyResources, len(DefaultKeyResources))
	for curve, res := range DefaultKeyResources {
		keys[curve] = res
	}
	for curve, res := range overrides {
		current := keys[curve]
		if len(res.Private) > 0 {
			current.Private = res.Private
		}
		if len(res.Public) > 0 {
			current.Public = res.Public
		}
		keys[curve] = current
	}
	return &Registry{Keys: keys}
}

// Resolution is the outcome of resolving a provider and a curve.
type Resolution struct {
	Provider   ProviderID
	Curve      CurveID
	Algorithms AlgorithmSet
	Keys       KeyResources
	Hash       crypto.Hash
}

// Resolve returns the algorithms and key resources for provider and curve. Unknown
// identifiers are never defaulted.
func (r *Registry) Resolve(provider ProviderID, curve CurveID) (*Resolution, error) {
	algorithms, ok := providerAlgorithms[provider]
	if !ok {
		return nil, &ConfigurationError{Kind: "provider", Value: provider.String()}
	}
	if curve.Nominal() == CurveUnknown {
		return nil, &ConfigurationError{Kind: "curve", Value: curve.String()}
	}
	keys, ok := r.Keys[curve]
	if !ok || len(keys.Private) == 0 || len(keys.Public) == 0 {
		return nil, &ConfigurationError{Kind: "key resources", Value: curve.String()}
	}
	hash, ok := StringToHash[algorithms.Hash]
	if !ok {
		return nil, &ConfigurationError{Kind: "hash", Value: algorithms.Hash}
	}
	if signHash, ok := hashOfSignature[algorithms.HashSignature]; !ok || signHash != hash {
		return nil, &ConfigurationError{Kind: "signature algorithm", Value: algorithms.HashSignature}
	}
	return &Resolution{
		Provider:   provider,
		Curve:      curve,
		Algorithms: algorithms,
		Keys:       keys,
		Hash:       hash,
	}, nil
}

package tools

import (
	"fmt"
	"strings"
)

// ProviderID represents the backend used to sign.
type ProviderID uint8

const (
	ProviderSoftware ProviderID = iota + 1 // In-process keys loaded from PEM resources
	ProviderHSM                            // Keys stored in a PKCS#11 token
)

// StringToProvider takes the name of a provider. Old benchmark names are kept as aliases.
var StringToProvider = map[string]ProviderID{
	"software": ProviderSoftware,
	"bc":       ProviderSoftware,
	"pkcs11":   ProviderHSM,
	"hsm":      ProviderHSM,
	"ncipher":  ProviderHSM,
}

// ParseProvider converts a provider name into a ProviderID.
func ParseProvider(name string) (ProviderID, error) {
	provider, ok := StringToProvider[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &ConfigurationError{Kind: "provider", Value: name}
	}
	return provider, nil
}

func (p ProviderID) String() string {
	switch p {
	case ProviderSoftware:
		return "software"
	case ProviderHSM:
		return "pkcs11"
	}
	return fmt.Sprintf("provider(%d)", uint8(p))
}

// CurveID represents the curve selected for a benchmark run.
type CurveID uint8

const (
	P256 CurveID = iota + 1
	P384
	P521
)

// StringToCurve takes the name of a curve
var StringToCurve = map[string]CurveID{
	"p256":  P256,
	"p-256": P256,
	"p384":  P384,
	"p-384": P384,
	"p521":  P521,
	"p-521": P521,
}

// ParseCurve converts a curve name into a CurveID.
func ParseCurve(name string) (CurveID, error) {
	curve, ok := StringToCurve[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, &ConfigurationError{Kind: "curve", Value: name}
	}
	return curve, nil
}

func (c CurveID) String() string {
	switch c {
	case P256:
		return "p256"
	case P384:
		return "p384"
	case P521:
		return "p521"
	}
	return fmt.Sprintf("curve(%d)", uint8(c))
}

// Nominal returns the named curve the identifier stands for. The key resources
// bound to a CurveID may hold a different curve.
func (c CurveID) Nominal() NamedCurve {
	switch c {
	case P256:
		return Secp256r1
	case P384:
		return Secp384r1
	case P521:
		return Secp521r1
	}
	return CurveUnknown
}

package tools

import (
	"crypto"
	"fmt"
	"io"
	"io/fs"
	"log"
	"time"
)

// Config contains the arguments needed to build an Engine. It is not modified
// by NewEngine.
type Config struct {
	Provider ProviderID
	Curve    CurveID
	Registry *Registry     // defaults to NewRegistry(nil)
	Keys     fs.FS         // key resources, defaults to DefaultResources()
	PKCS11   *PKCS11Config // required by ProviderHSM
	Metrics  *Metrics      // optional
}

// Engine signs and verifies with one provider and one curve for its whole life.
type Engine struct {
	Log        *log.Logger
	resolution *Resolution
	keys       KeyPair
	session    SignSession
	metrics    *Metrics
}

// NewEngine resolves the provider and curve, registers the provider, loads the key
// material and opens the signing session. Identifiers are resolved before any key
// is read.
func NewEngine(conf *Config, logger *log.Logger) (*Engine, error) {
	if conf == nil {
		return nil, &ConfigurationError{Kind: "engine configuration", Value: ""}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	registry := conf.Registry
	if registry == nil {
		registry = NewRegistry(nil)
	}
	res, err := registry.Resolve(conf.Provider, conf.Curve)
	if err != nil {
		return nil, err
	}
	var lib string
	if conf.Provider == ProviderHSM {
		if conf.PKCS11 == nil || len(conf.PKCS11.Lib) == 0 {
			return nil, &ConfigurationError{Kind: "p11lib", Value: ""}
		}
		lib = conf.PKCS11.Lib
	}
	registered, err := RegisterProvider(conf.Provider, lib)
	if err != nil {
		return nil, err
	}
	if registered {
		logger.Printf("registered provider %s", providerKey(conf.Provider, lib))
	}

	keys := conf.Keys
	if keys == nil {
		keys = DefaultResources()
	}
	public, err := LoadPublicKey(keys, res.Keys.Public, res.Algorithms.KeyFactory)
	if err != nil {
		return nil, err
	}
	if nominal := conf.Curve.Nominal(); public.Curve() != nominal {
		logger.Printf("curve %s is bound to a %s key (expected %s)", conf.Curve, public.Curve(), nominal)
	}

	engine := &Engine{
		Log:        logger,
		resolution: res,
		keys:       KeyPair{Public: public},
		metrics:    conf.Metrics,
	}
	switch conf.Provider {
	case ProviderSoftware:
		private, err := LoadPrivateKey(keys, res.Keys.Private, res.Algorithms.KeyFactory)
		if err != nil {
			return nil, err
		}
		if !private.PublicKey().Equal(public) {
			return nil, &KeyLoadError{
				Resource: res.Keys.Private,
				Err:      fmt.Errorf("private key does not match %s", res.Keys.Public),
			}
		}
		session, err := NewFileSession(private, res.Hash)
		if err != nil {
			return nil, err
		}
		engine.keys.Private = private
		engine.session = session
	case ProviderHSM:
		p11conf := *conf.PKCS11
		if len(p11conf.Mechanism) == 0 {
			p11conf.Mechanism = res.Algorithms.RawSignature
		}
		if _, err := ParseMechanism(p11conf.Mechanism); err != nil {
			return nil, err
		}
		session, err := NewPKCS11Session(&p11conf, logger)
		if err != nil {
			return nil, err
		}
		session.Hash = res.Hash
		if _, err := session.FindKeyPair(public); err != nil {
			_ = session.End()
			if err == ErrNoValidKeys {
				return nil, fmt.Errorf("no key pair with label=%s and id=%s, import one with import-key", p11conf.Label, p11conf.ID)
			}
			return nil, err
		}
		engine.session = session
	}
	return engine, nil
}

// Provider returns the provider of the engine.
func (e *Engine) Provider() ProviderID {
	return e.resolution.Provider
}

// Curve returns the curve of the engine.
func (e *Engine) Curve() CurveID {
	return e.resolution.Curve
}

// Algorithms returns the algorithm identifiers resolved for the engine.
func (e *Engine) Algorithms() AlgorithmSet {
	return e.resolution.Algorithms
}

// PublicKey returns the key used to verify.
func (e *Engine) PublicKey() *PublicKey {
	return e.keys.Public
}

// Signer returns the engine key as a crypto.Signer. Its Sign method expects a digest.
func (e *Engine) Signer() crypto.Signer {
	return e.session.Signer()
}

// Hash returns the digest of message.
func (e *Engine) Hash(message []byte) []byte {
	start := time.Now()
	h := e.resolution.Hash.New()
	h.Write(message)
	sum := h.Sum(nil)
	e.metrics.observe(OpHash, e.Provider(), e.Curve(), start, StatusSuccess)
	return sum
}

// Sign hashes and signs message. The signature is ASN.1 encoded.
func (e *Engine) Sign(message []byte) ([]byte, error) {
	start := time.Now()
	sig, err := e.session.SignMessage(message)
	e.metrics.observe(OpSign, e.Provider(), e.Curve(), start, operationStatus(err))
	return sig, err
}

// SignPrehashed signs a digest computed by the caller. On the HSM provider the
// digest is sent with the raw command protocol.
func (e *Engine) SignPrehashed(digest []byte) ([]byte, error) {
	start := time.Now()
	sig, err := e.session.SignDigest(digest)
	e.metrics.observe(OpSignPrehashed, e.Provider(), e.Curve(), start, operationStatus(err))
	return sig, err
}

// Verify checks signature against message with the public key. A signature that
// does not match, or cannot be parsed, is reported as false. Errors are kept for
// signatures that cannot be checked at all.
func (e *Engine) Verify(message, signature []byte) (bool, error) {
	start := time.Now()
	ok, err := e.verify(message, signature)
	status := StatusSuccess
	if err != nil {
		status = StatusError
	} else if !ok {
		status = StatusInvalid
	}
	e.metrics.observe(OpVerify, e.Provider(), e.Curve(), start, status)
	return ok, err
}

func (e *Engine) verify(message, signature []byte) (bool, error) {
	public := e.keys.Public
	if public == nil {
		return false, fmt.Errorf("no public key loaded")
	}
	if len(signature) == 0 {
		return false, fmt.Errorf("empty signature")
	}
	if limit := public.Curve().MaxSignatureLen(); len(signature) > limit {
		return false, fmt.Errorf("signature is %d bytes long, %s signatures are at most %d", len(signature), public.Curve(), limit)
	}
	h := e.resolution.Hash.New()
	h.Write(message)
	return public.VerifyDigest(h.Sum(nil), signature), nil
}

// Close ends the signing session.
func (e *Engine) Close() error {
	if e.session == nil {
		return nil
	}
	return e.session.End()
}

func operationStatus(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

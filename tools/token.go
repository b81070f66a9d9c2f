package tools

import (
	"fmt"
	"io"
	"log"
)

// ImportKey stores the private key bound to conf.Curve in the token configured in
// conf.PKCS11, so that an HSM engine can later find it by label and id.
func ImportKey(conf *Config, logger *log.Logger) error {
	if conf == nil || conf.PKCS11 == nil || len(conf.PKCS11.Lib) == 0 {
		return &ConfigurationError{Kind: "p11lib", Value: ""}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	registry := conf.Registry
	if registry == nil {
		registry = NewRegistry(nil)
	}
	res, err := registry.Resolve(ProviderHSM, conf.Curve)
	if err != nil {
		return err
	}
	keys := conf.Keys
	if keys == nil {
		keys = DefaultResources()
	}
	private, err := LoadPrivateKey(keys, res.Keys.Private, res.Algorithms.KeyFactory)
	if err != nil {
		return err
	}
	if _, err := RegisterProvider(ProviderHSM, conf.PKCS11.Lib); err != nil {
		return err
	}
	session, err := NewPKCS11Session(conf.PKCS11, logger)
	if err != nil {
		return err
	}
	defer session.End()
	if _, err := session.ImportKeyPair(private); err != nil {
		return fmt.Errorf("cannot import %s: %w", res.Keys.Private, err)
	}
	return nil
}

// ResetKeys destroys every object in the token with the configured label.
func ResetKeys(conf *PKCS11Config, logger *log.Logger) error {
	if conf == nil || len(conf.Lib) == 0 {
		return &ConfigurationError{Kind: "p11lib", Value: ""}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if _, err := RegisterProvider(ProviderHSM, conf.Lib); err != nil {
		return err
	}
	session, err := NewPKCS11Session(conf, logger)
	if err != nil {
		return err
	}
	defer session.End()
	return session.DestroyAllKeys()
}

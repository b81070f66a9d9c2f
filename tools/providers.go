package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/miekg/pkcs11"
)

var (
	providersMu sync.Mutex
	providers   = make(map[string]ProviderID)
	modules     = make(map[string]*pkcs11.Ctx)
)

func providerKey(id ProviderID, lib string) string {
	if id == ProviderHSM {
		return "pkcs11:" + lib
	}
	return id.String()
}

// RegisterProvider makes a provider available to the process. It returns true the
// first time a provider (and, for PKCS#11, a library) is registered. Providers are
// never unregistered.
func RegisterProvider(id ProviderID, lib string) (bool, error) {
	if _, ok := providerAlgorithms[id]; !ok {
		return false, &ConfigurationError{Kind: "provider", Value: id.String()}
	}
	providersMu.Lock()
	defer providersMu.Unlock()
	key := providerKey(id, lib)
	if _, ok := providers[key]; ok {
		return false, nil
	}
	if id == ProviderHSM {
		if _, err := loadModule(lib); err != nil {
			return false, err
		}
	}
	providers[key] = id
	return true, nil
}

// RegisteredProviders returns the keys of the registered providers, sorted.
func RegisteredProviders() []string {
	providersMu.Lock()
	defer providersMu.Unlock()
	keys := make([]string, 0, len(providers))
	for key := range providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// pkcs11Module returns the initialized module for lib, loading it if needed.
func pkcs11Module(lib string) (*pkcs11.Ctx, error) {
	providersMu.Lock()
	defer providersMu.Unlock()
	return loadModule(lib)
}

// loadModule must be called with providersMu held.
func loadModule(lib string) (*pkcs11.Ctx, error) {
	if p, ok := modules[lib]; ok {
		return p, nil
	}
	if len(lib) == 0 {
		return nil, &ConfigurationError{Kind: "p11lib", Value: lib}
	}
	p := pkcs11.New(lib)
	if p == nil {
		return nil, fmt.Errorf("error initializing %s: file not found", lib)
	}
	if err := p.Initialize(); err != nil {
		if perr, ok := err.(pkcs11.Error); !ok || perr != pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED {
			p.Destroy()
			return nil, fmt.Errorf("error initializing %s: %s. (Has the .db RW permission?)", lib, err)
		}
	}
	modules[lib] = p
	return p, nil
}

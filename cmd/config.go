package cmd

import (
	"io/fs"
	"os"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/spf13/viper"
)

// newEngineConfig builds the engine configuration from flags, environment and
// config file. Names are parsed into identifiers here and nowhere else.
func newEngineConfig() (*tools.Config, error) {
	provider, err := tools.ParseProvider(viper.GetString("provider"))
	if err != nil {
		return nil, err
	}
	curve, err := tools.ParseCurve(viper.GetString("curve"))
	if err != nil {
		return nil, err
	}
	overrides := make(map[tools.CurveID]tools.KeyResources)
	for _, id := range []tools.CurveID{tools.P256, tools.P384, tools.P521} {
		res := tools.KeyResources{
			Private: viper.GetString("keys." + id.String() + ".private"),
			Public:  viper.GetString("keys." + id.String() + ".public"),
		}
		if len(res.Private) > 0 || len(res.Public) > 0 {
			overrides[id] = res
		}
	}
	conf := &tools.Config{
		Provider: provider,
		Curve:    curve,
		Registry: tools.NewRegistry(overrides),
	}
	if dir := viper.GetString("key-dir"); len(dir) > 0 {
		if err := filesExist(dir); err != nil {
			return nil, err
		}
		conf.Keys = os.DirFS(dir)
	}
	if provider == tools.ProviderHSM {
		conf.PKCS11, err = newPKCS11Config(curve)
		if err != nil {
			return nil, err
		}
	}
	return conf, nil
}

func newPKCS11Config(curve tools.CurveID) (*tools.PKCS11Config, error) {
	p11lib := viper.GetString("p11lib")
	if len(p11lib) == 0 {
		return nil, &tools.ConfigurationError{Kind: "p11lib", Value: p11lib}
	}
	if err := filesExist(p11lib); err != nil {
		return nil, err
	}
	if _, err := tools.ParseMechanism(viper.GetString("mechanism")); err != nil {
		return nil, err
	}
	id := viper.GetString("key-id")
	if len(id) == 0 {
		id = curve.String()
	}
	return &tools.PKCS11Config{
		Lib:       p11lib,
		Pin:       viper.GetString("user-key"),
		Label:     viper.GetString("key-label"),
		ID:        id,
		Mechanism: viper.GetString("mechanism"),
		Debug:     viper.GetBool("verbose"),
	}, nil
}

// readInput returns the content of path, or the embedded message when path is empty.
func readInput(path string) ([]byte, error) {
	if len(path) == 0 {
		return readDefaultMessage()
	}
	if err := filesExist(path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func readDefaultMessage() ([]byte, error) {
	return fs.ReadFile(tools.DefaultResources(), tools.MessageResource)
}

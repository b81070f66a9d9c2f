package tools_test

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"io/fs"
	"testing"

	"github.com/niclabs/ecc-bench/tools"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var curves = []tools.CurveID{tools.P256, tools.P384, tools.P521}

func newSoftwareEngine(t testing.TB, curve tools.CurveID) *tools.Engine {
	engine, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    curve,
	}, Log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func TestEngine_SignVerify(t *testing.T) {
	for _, curve := range curves {
		t.Run(curve.String(), func(t *testing.T) {
			engine := newSoftwareEngine(t, curve)
			assert.Equal(t, curve.Nominal(), engine.PublicKey().Curve())

			sig, err := engine.Sign([]byte(helloWorld))
			require.NoError(t, err)
			ok, err := engine.Verify([]byte(helloWorld), sig)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = engine.Verify([]byte("Hello World!"), sig)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestEngine_SignPrehashed(t *testing.T) {
	for _, curve := range curves {
		t.Run(curve.String(), func(t *testing.T) {
			engine := newSoftwareEngine(t, curve)
			sig, err := engine.SignPrehashed(engine.Hash([]byte(helloWorld)))
			require.NoError(t, err)
			ok, err := engine.Verify([]byte(helloWorld), sig)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestEngine_TamperedSignature(t *testing.T) {
	engine := newSoftwareEngine(t, tools.P256)
	sig, err := engine.Sign([]byte(helloWorld))
	require.NoError(t, err)
	for i := range sig {
		tampered := append([]byte{}, sig...)
		tampered[i] ^= 0x01
		ok, err := engine.Verify([]byte(helloWorld), tampered)
		assert.NoError(t, err, "byte %d", i)
		assert.False(t, ok, "byte %d", i)
	}
}

func TestEngine_VerifyErrors(t *testing.T) {
	engine := newSoftwareEngine(t, tools.P256)

	_, err := engine.Verify([]byte(helloWorld), nil)
	assert.Error(t, err)

	long := make([]byte, tools.Secp256r1.MaxSignatureLen()+1)
	_, err = engine.Verify([]byte(helloWorld), long)
	assert.Error(t, err)

	ok, err := engine.Verify([]byte(helloWorld), []byte("not a signature"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestEngine_Hash(t *testing.T) {
	engine := newSoftwareEngine(t, tools.P384)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		hex.EncodeToString(engine.Hash(nil)))
	assert.Equal(t, "a591a6d40bf420404a011733cfb7b190d62c65bf0bcda32b57b277d9ad9f146e",
		hex.EncodeToString(engine.Hash([]byte(helloWorld))))
	assert.Equal(t, engine.Hash([]byte(helloWorld)), engine.Hash([]byte(helloWorld)))
}

// openRecorder fails every Open and remembers that it was called.
type openRecorder struct {
	opened []string
}

func (r *openRecorder) Open(name string) (fs.File, error) {
	r.opened = append(r.opened, name)
	return nil, fs.ErrNotExist
}

func TestEngine_UnknownIdentifiers(t *testing.T) {
	keys := &openRecorder{}
	var confErr *tools.ConfigurationError

	_, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    tools.CurveID(99),
		Keys:     keys,
	}, Log)
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "curve", confErr.Kind)

	_, err = tools.NewEngine(&tools.Config{
		Provider: tools.ProviderID(0),
		Curve:    tools.P256,
		Keys:     keys,
	}, Log)
	require.ErrorAs(t, err, &confErr)
	assert.Empty(t, keys.opened)

	_, err = tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    tools.P256,
		Keys:     keys,
	}, Log)
	var keyErr *tools.KeyLoadError
	assert.ErrorAs(t, err, &keyErr)
	assert.NotEmpty(t, keys.opened)
}

func TestEngine_HSMWithoutLibrary(t *testing.T) {
	var confErr *tools.ConfigurationError
	_, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderHSM,
		Curve:    tools.P256,
	}, Log)
	require.ErrorAs(t, err, &confErr)
	assert.Equal(t, "p11lib", confErr.Kind)
}

func TestEngine_MismatchedKeyPair(t *testing.T) {
	_, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    tools.P256,
		Registry: tools.NewRegistry(map[tools.CurveID]tools.KeyResources{
			tools.P256: {Private: "secp384r1_pkcs8_private.pem"},
		}),
	}, Log)
	var keyErr *tools.KeyLoadError
	require.ErrorAs(t, err, &keyErr)
	assert.Equal(t, "secp384r1_pkcs8_private.pem", keyErr.Resource)
}

func TestEngine_Secp256k1EndToEnd(t *testing.T) {
	message, err := fs.ReadFile(tools.DefaultResources(), tools.MessageResource)
	require.NoError(t, err)
	require.Len(t, message, 11)

	engine, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    tools.P256,
		Registry: tools.NewRegistry(map[tools.CurveID]tools.KeyResources{
			tools.P256: {Private: "secp256k1_pkcs8_private.pem", Public: "secp256k1_public.pem"},
		}),
	}, Log)
	require.NoError(t, err)
	defer engine.Close()
	assert.Equal(t, tools.Secp256k1, engine.PublicKey().Curve())

	sig, err := engine.Sign(message)
	require.NoError(t, err)
	ok, err := engine.Verify(message, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	sig, err = engine.SignPrehashed(engine.Hash(message))
	require.NoError(t, err)
	ok, err = engine.Verify(message, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEngine_Signer(t *testing.T) {
	engine := newSoftwareEngine(t, tools.P256)
	signer := engine.Signer()
	require.NotNil(t, signer)
	digest := engine.Hash([]byte(helloWorld))

	sig, err := signer.Sign(rand.Reader, digest, crypto.SHA256)
	require.NoError(t, err)
	public, ok := signer.Public().(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, ecdsa.VerifyASN1(public, digest, sig))

	_, err = signer.Sign(rand.Reader, digest[:20], crypto.SHA256)
	assert.Error(t, err)
}

func TestEngine_Metrics(t *testing.T) {
	metrics := tools.NewMetrics(prometheus.NewRegistry())
	engine, err := tools.NewEngine(&tools.Config{
		Provider: tools.ProviderSoftware,
		Curve:    tools.P384,
		Metrics:  metrics,
	}, Log)
	require.NoError(t, err)
	defer engine.Close()

	sig, err := engine.Sign([]byte(helloWorld))
	require.NoError(t, err)
	_, err = engine.Verify([]byte(helloWorld), sig)
	require.NoError(t, err)
	_, err = engine.Verify([]byte("tampered"), sig)
	require.NoError(t, err)
	_, err = engine.Verify([]byte(helloWorld), nil)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues(tools.OpSign, "software", "p384", tools.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues(tools.OpVerify, "software", "p384", tools.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues(tools.OpVerify, "software", "p384", tools.StatusInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues(tools.OpVerify, "software", "p384", tools.StatusError)))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Duration))
}

func BenchmarkEngine(b *testing.B) {
	message := []byte(helloWorld)
	for _, curve := range curves {
		engine := newSoftwareEngine(b, curve)
		digest := engine.Hash(message)
		sig, err := engine.Sign(message)
		require.NoError(b, err)

		b.Run(curve.String()+"/hash", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				engine.Hash(message)
			}
		})
		b.Run(curve.String()+"/sign", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := engine.Sign(message); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(curve.String()+"/sign_prehashed", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := engine.SignPrehashed(digest); err != nil {
					b.Fatal(err)
				}
			}
		})
		b.Run(curve.String()+"/verify", func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if ok, err := engine.Verify(message, sig); err != nil || !ok {
					b.Fatal("signature not verified")
				}
			}
		})
	}
}

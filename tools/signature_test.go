package tools

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawToASN1(t *testing.T) {
	raw := make([]byte, 64)
	raw[0] = 0x80 // needs a leading zero in DER
	raw[31] = 1
	raw[63] = 2

	sig, err := rawToASN1(raw)
	require.NoError(t, err)
	r, s, err := parseSignature(sig)
	require.NoError(t, err)
	assert.Zero(t, r.Cmp(new(big.Int).SetBytes(raw[:32])))
	assert.Zero(t, s.Cmp(big.NewInt(2)))

	back, err := asn1ToRaw(sig, 32)
	require.NoError(t, err)
	assert.Equal(t, raw, back)

	_, err = asn1ToRaw(sig, 16)
	assert.Error(t, err)

	_, err = rawToASN1(raw[:63])
	assert.Error(t, err)
	_, err = rawToASN1(nil)
	assert.Error(t, err)
}

func TestParseSignature_Strict(t *testing.T) {
	valid, err := marshalSignature(big.NewInt(1), big.NewInt(2))
	require.NoError(t, err)
	_, _, err = parseSignature(valid)
	require.NoError(t, err)

	for name, sig := range map[string][]byte{
		"empty":    {},
		"trailing": append(append([]byte{}, valid...), 0),
		"zero r":   {0x30, 0x06, 0x02, 0x01, 0x00, 0x02, 0x01, 0x01},
		"negative": {0x30, 0x06, 0x02, 0x01, 0xff, 0x02, 0x01, 0x01},
		"one int":  {0x30, 0x03, 0x02, 0x01, 0x01},
		"not seq":  {0x04, 0x02, 0x01, 0x01},
	} {
		_, _, err := parseSignature(sig)
		assert.Error(t, err, name)
	}
}

package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCPF(t *testing.T) {
	assert.True(t, IsValidCPF("11144477735"))
	assert.True(t, IsValidCPF("111.444.777-35"), "formatting is stripped")

	assert.False(t, IsValidCPF("11144477734"), "wrong check digit")
	assert.False(t, IsValidCPF("00000000000"), "repeated digits")
	assert.False(t, IsValidCPF("1114447773"), "too short")
	assert.False(t, IsValidCPF(""))
}

func TestIsValidCNPJ(t *testing.T) {
	assert.True(t, IsValidCNPJ("11222333000181"))
	assert.True(t, IsValidCNPJ("11.222.333/0001-81"), "formatting is stripped")

	assert.False(t, IsValidCNPJ("11222333000182"), "wrong check digit")
	assert.False(t, IsValidCNPJ("11111111111111"), "repeated digits")
	assert.False(t, IsValidCNPJ("112223330001"), "too short")
}

func TestIsValidTaxID(t *testing.T) {
	assert.True(t, IsValidTaxID("11144477735"), "11 digits routes to CPF")
	assert.True(t, IsValidTaxID("11222333000181"), "14 digits routes to CNPJ")

	assert.False(t, IsValidTaxID("123"))
	assert.False(t, IsValidTaxID("not-a-document"))
	assert.False(t, IsValidTaxID(""))
}

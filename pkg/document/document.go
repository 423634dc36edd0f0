// Package document validates Brazilian taxpayer identifiers (CPF for
// individuals, CNPJ for legal entities) by their check digits.
package document

import "strings"

// IsValidTaxID reports whether id is a well-formed CPF or CNPJ, chosen by
// digit count after stripping formatting. Anything else is invalid.
func IsValidTaxID(id string) bool {
	digits := onlyDigits(id)
	switch len(digits) {
	case 11:
		return IsValidCPF(digits)
	case 14:
		return IsValidCNPJ(digits)
	default:
		return false
	}
}

// IsValidCPF checks the two verification digits of an 11-digit CPF.
func IsValidCPF(cpf string) bool {
	cpf = onlyDigits(cpf)
	if len(cpf) != 11 || allSame(cpf) {
		return false
	}

	d1 := checkDigit(cpf[:9], []int{10, 9, 8, 7, 6, 5, 4, 3, 2})
	if int(cpf[9]-'0') != d1 {
		return false
	}

	d2 := checkDigit(cpf[:10], []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(cpf[10]-'0') == d2
}

// IsValidCNPJ checks the two verification digits of a 14-digit CNPJ.
func IsValidCNPJ(cnpj string) bool {
	cnpj = onlyDigits(cnpj)
	if len(cnpj) != 14 || allSame(cnpj) {
		return false
	}

	d1 := checkDigit(cnpj[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	if int(cnpj[12]-'0') != d1 {
		return false
	}

	d2 := checkDigit(cnpj[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return int(cnpj[13]-'0') == d2
}

func checkDigit(digits string, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

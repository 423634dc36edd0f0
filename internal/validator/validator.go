// Package validator applies the per-record-type rule table: required
// fields must be present and the type's amount field must parse as a
// strictly positive number. Validation is a pure function per record and
// never errors.
package validator

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fcavalcantirj/open-data-gov-sub002/internal/models"
)

// Column names exactly as the electoral authority publishes them. If the
// publisher renames one, records become invalid for the missing field;
// SchemaDriftSuspected exists to surface that instead of guessing.
const (
	FieldCandidateTaxID   = "NR_CPF_CANDIDATO"
	FieldRevenueAmount    = "VR_RECEITA"
	FieldContractedAmount = "VR_DESPESA_CONTRATADA"
	FieldPaymentAmount    = "VR_PAGTO_DESPESA"
	FieldUnit             = "SG_UF"
	FieldCandidateUnit    = "SG_UF_CANDIDATO"
)

// Schema drift: a file with at least MinRowsForDrift rows whose invalid
// rate reaches DriftThreshold most likely has renamed columns upstream.
const (
	MinRowsForDrift = 50
	DriftThreshold  = 0.9
)

type rule struct {
	required    []string
	amountField string
}

var rules = map[models.RecordType]rule{
	models.TypeRevenue: {
		required:    []string{FieldCandidateTaxID, FieldRevenueAmount},
		amountField: FieldRevenueAmount,
	},
	models.TypeOriginalDonor: {
		required:    []string{FieldCandidateTaxID, FieldRevenueAmount},
		amountField: FieldRevenueAmount,
	},
	models.TypeContractedExpense: {
		required:    []string{FieldCandidateTaxID, FieldContractedAmount},
		amountField: FieldContractedAmount,
	},
	models.TypePaidExpense: {
		required:    []string{FieldCandidateTaxID, FieldPaymentAmount},
		amountField: FieldPaymentAmount,
	},
}

// Validator holds the optional tax-id checksum hook. The zero value
// validates structure and amounts only.
type Validator struct {
	// TaxIDCheck, when set, must also accept the candidate tax id for the
	// record to be valid.
	TaxIDCheck func(string) bool
}

// Validate applies the rule table for the record's type. The geographic
// unit is extracted opportunistically and does not affect validity.
func (v *Validator) Validate(rec *models.Record) models.ValidationResult {
	result := models.ValidationResult{GeographicUnit: geographicUnit(rec)}

	r, ok := rules[rec.Type]
	if !ok {
		return result
	}

	for _, field := range r.required {
		if strings.TrimSpace(rec.Field(field)) == "" {
			return result
		}
	}

	amount, ok := ParseAmount(rec.Field(r.amountField))
	if !ok || !amount.IsPositive() {
		return result
	}

	if v.TaxIDCheck != nil && !v.TaxIDCheck(rec.Field(FieldCandidateTaxID)) {
		return result
	}

	result.Valid = true
	result.Amount = amount
	return result
}

// ParseAmount parses a monetary cell. The source mixes plain decimals
// ("1234.56") with Brazilian formatting ("1.234,56"); a comma always
// marks the decimal separator when present.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}

	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func geographicUnit(rec *models.Record) string {
	if unit := strings.TrimSpace(rec.Field(FieldUnit)); unit != "" {
		return unit
	}
	return strings.TrimSpace(rec.Field(FieldCandidateUnit))
}

// SchemaDriftSuspected reports whether a finished file's invalid rate is
// high enough to suggest the upstream schema changed.
func SchemaDriftSuspected(stats models.FileStats) bool {
	if stats.RowsProcessed < MinRowsForDrift {
		return false
	}
	rate := float64(stats.InvalidRecords) / float64(stats.RowsProcessed)
	return rate >= DriftThreshold
}

package claims

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var npiPattern = regexp.MustCompile(`^[0-9]{10}$`)

// MaxAmount bounds every stored amount, exclusive, in both directions. The
// money columns are NUMERIC(12,2), leaving ten integer digits.
var MaxAmount = Money{decimal.New(1, 10)}

// fieldValidator enforces the length bounds declared in struct tags. The
// procedure and NPI rules are checked separately, before it runs.
var fieldValidator = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeProcedure checks that code is non-empty and starts with 'D' in
// either case, and returns it fully upper-cased.
func NormalizeProcedure(code string) (string, bool) {
	if code == "" || (code[0] != 'D' && code[0] != 'd') {
		return "", false
	}
	return strings.ToUpper(code), true
}

// ValidNPI reports whether npi is exactly ten ASCII digits.
func ValidNPI(npi string) bool {
	return npiPattern.MatchString(npi)
}

// hasMoneyPrecision reports whether m is representable with two fractional
// digits ("1.50" and "1.5" pass, "1.505" does not).
func hasMoneyPrecision(m Money) bool {
	return m.Decimal.Equal(m.Round(MoneyPlaces))
}

// withinAmountRange reports whether m fits a money column.
func withinAmountRange(m Money) bool {
	return m.Abs().LessThan(MaxAmount.Decimal)
}

// ValidateLine applies every line rule to in and returns a copy with the
// procedure code normalized. idx is reported back in the ValidationError.
func ValidateLine(idx int, in ClaimLineInput) (ClaimLineInput, error) {
	code, ok := NormalizeProcedure(in.SubmittedProcedure)
	if !ok {
		return in, &ValidationError{Line: idx, Field: "submitted_procedure", Rule: RuleProcedurePrefix, Value: in.SubmittedProcedure}
	}
	if !ValidNPI(in.ProviderNPI) {
		return in, &ValidationError{Line: idx, Field: "provider_npi", Rule: RuleNPIFormat, Value: in.ProviderNPI}
	}
	if err := fieldValidator.Struct(in); err != nil {
		return in, fieldError(idx, err)
	}
	if !in.ServiceDate.Valid {
		return in, &ValidationError{Line: idx, Field: "service_date", Rule: RuleRequired}
	}

	amounts := []struct {
		field string
		value *Money
	}{
		{"provider_fees", in.ProviderFees},
		{"allowed_fees", in.AllowedFees},
		{"member_coinsurance", in.MemberCoinsurance},
		{"member_copay", in.MemberCopay},
	}
	for _, a := range amounts {
		if !hasMoneyPrecision(*a.value) {
			return in, &ValidationError{Line: idx, Field: a.field, Rule: RuleDecimalPlaces, Value: a.value.Decimal.String()}
		}
		if !withinAmountRange(*a.value) {
			return in, &ValidationError{Line: idx, Field: a.field, Rule: RuleMaxAmount, Value: a.value.String()}
		}
	}
	if net := ComputeNetFee(*in.ProviderFees, *in.MemberCoinsurance, *in.MemberCopay, *in.AllowedFees); !withinAmountRange(net) {
		return in, &ValidationError{Line: idx, Field: "net_fee", Rule: RuleMaxAmount, Value: net.String()}
	}

	in.SubmittedProcedure = code
	return in, nil
}

// ValidateClaimRequest checks the claim reference and every line, in order,
// and stops at the first violation. The claim total must fit a money column
// as well. On success the returned request carries
// the normalized lines; req itself is not modified.
func ValidateClaimRequest(req CreateClaimRequest) (CreateClaimRequest, error) {
	if err := fieldValidator.Struct(req); err != nil {
		return req, fieldError(-1, err)
	}
	if len(req.Lines) == 0 {
		return req, &ValidationError{Line: -1, Field: "lines", Rule: RuleMinLines}
	}

	out := CreateClaimRequest{
		ClaimReference: req.ClaimReference,
		Lines:          make([]ClaimLineInput, len(req.Lines)),
	}
	var total Money
	for i, line := range req.Lines {
		normalized, err := ValidateLine(i, line)
		if err != nil {
			return req, err
		}
		out.Lines[i] = normalized
		total = Money{total.Add(ComputeNetFee(*line.ProviderFees, *line.MemberCoinsurance, *line.MemberCopay, *line.AllowedFees).Decimal)}
	}
	if !withinAmountRange(total) {
		return req, &ValidationError{Line: -1, Field: "total_net_fee", Rule: RuleMaxAmount, Value: total.String()}
	}
	return out, nil
}

func fieldError(line int, err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]

	rule := fe.Tag()
	switch rule {
	case "required":
		rule = RuleRequired
	case "max":
		rule = RuleMaxLength
	}

	verr := &ValidationError{Line: line, Field: fe.Field(), Rule: rule}
	if s, ok := fe.Value().(string); ok {
		verr.Value = s
	}
	return verr
}

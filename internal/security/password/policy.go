package password

import "unicode"

// DefaultPolicy aplica a reset de password y alta por CLI.
var DefaultPolicy = Policy{MinLength: 8, MaxLength: 128}

// Policy valida passwords nuevos. Los motivos son códigos estables que el
// cliente puede traducir.
type Policy struct {
	MinLength    int
	MaxLength    int // 0 = sin tope
	MixedCase    bool
	RequireDigit bool
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	n := len([]rune(s))
	switch {
	case n < p.MinLength:
		reasons = append(reasons, "too_short")
	case p.MaxLength > 0 && n > p.MaxLength:
		reasons = append(reasons, "too_long")
	}

	var upper, lower, digit bool
	for _, r := range s {
		upper = upper || unicode.IsUpper(r)
		lower = lower || unicode.IsLower(r)
		digit = digit || unicode.IsDigit(r)
	}
	if p.MixedCase && !(upper && lower) {
		reasons = append(reasons, "mixed_case")
	}
	if p.RequireDigit && !digit {
		reasons = append(reasons, "missing_digit")
	}
	return len(reasons) == 0, reasons
}

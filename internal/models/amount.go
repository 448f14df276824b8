package models

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the fixed-point scale of every amount crossing the chain
// boundary.
const TokenDecimals = 18

// ToBaseUnits converts a human decimal string ("12.5") into a base-unit
// integer at 18 decimals. Conversion is pure big.Int string manipulation;
// floating point would lose precision above 2^53.
func ToBaseUnits(decimal string) (*big.Int, error) {
	decimal = strings.TrimSpace(decimal)
	if decimal == "" {
		return nil, fmt.Errorf("empty amount")
	}

	negative := strings.HasPrefix(decimal, "-")
	if negative {
		return nil, fmt.Errorf("negative amount %q not allowed", decimal)
	}

	parts := strings.SplitN(decimal, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}

	if whole == "" {
		whole = "0"
	}
	if len(frac) > TokenDecimals {
		return nil, fmt.Errorf("amount %q exceeds %d decimal places", decimal, TokenDecimals)
	}

	// Right-pad the fraction to the full scale
	frac = frac + strings.Repeat("0", TokenDecimals-len(frac))

	combined := whole + frac
	value, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", decimal)
	}

	return value, nil
}

// FromBaseUnits converts a base-unit integer into a decimal string, trimming
// trailing zeros from the fractional part.
func FromBaseUnits(value *big.Int) string {
	if value == nil {
		return "0"
	}

	str := value.String()
	negative := strings.HasPrefix(str, "-")
	if negative {
		str = str[1:]
	}

	if len(str) <= TokenDecimals {
		str = strings.Repeat("0", TokenDecimals-len(str)+1) + str
	}

	split := len(str) - TokenDecimals
	whole := str[:split]
	frac := strings.TrimRight(str[split:], "0")

	result := whole
	if frac != "" {
		result = whole + "." + frac
	}
	if negative {
		result = "-" + result
	}

	return result
}

// ParseBaseUnits parses a base-unit integer string ("100000000000000000000")
// into a big.Int, treating empty strings as zero.
func ParseBaseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return big.NewInt(0), nil
	}

	value, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid base-unit amount %q", s)
	}

	return value, nil
}

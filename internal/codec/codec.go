// Package codec converts between the ledger's fixed-point integer
// representation (wei amounts, unix-second timestamps) and human-facing
// forms. Pure functions, no I/O.
//
// Display conversions fail closed to a safe zero value so a malformed
// record never blanks a caller's view; validation conversions never fail
// closed — a malformed amount must not reach a mutating call.
package codec

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/shiptrack/internal/ledger"
)

// Decimals is the ledger's unit scale: 1 ether = 10^18 wei.
const Decimals = 18

// TimestampUnset is the display form for the 0 sentinel.
const TimestampUnset = "unset"

var unitScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil)

// ToDisplayAmount renders a wei amount as a decimal ether string with
// trailing zeros trimmed ("10000000000000000" -> "0.01"). A nil or
// negative input yields "0"; that is a degraded condition, logged, not
// an error, so display paths keep rendering.
func ToDisplayAmount(raw *big.Int) string {
	if raw == nil || raw.Sign() < 0 {
		zap.L().Warn("degraded amount display, rendering zero", zap.Any("raw", raw))
		return "0"
	}

	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(raw, unitScale, frac)

	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := frac.String()
	fracStr = strings.Repeat("0", Decimals-len(fracStr)) + fracStr
	return whole.String() + "." + strings.TrimRight(fracStr, "0")
}

// ToRawAmount parses a decimal ether string into wei. Inputs that are
// empty, not a plain decimal number, carry more than 18 fractional
// digits, or are not strictly positive are rejected with
// ledger.ErrInvalidAmount: a shipment must always carry positive
// consideration.
func ToRawAmount(display string) (*big.Int, error) {
	display = strings.TrimSpace(display)
	if display == "" {
		return nil, fmt.Errorf("%w: empty amount", ledger.ErrInvalidAmount)
	}
	if strings.HasPrefix(display, "-") || strings.HasPrefix(display, "+") {
		return nil, fmt.Errorf("%w: %q must be an unsigned decimal", ledger.ErrInvalidAmount, display)
	}

	wholePart, fracPart, _ := strings.Cut(display, ".")
	if wholePart == "" && fracPart == "" {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidAmount, display)
	}
	if !digitsOnly(wholePart) || !digitsOnly(fracPart) {
		return nil, fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidAmount, display)
	}
	if len(fracPart) > Decimals {
		return nil, fmt.Errorf("%w: %q exceeds %d decimal places", ledger.ErrInvalidAmount, display, Decimals)
	}

	whole := big.NewInt(0)
	if wholePart != "" {
		w, ok := new(big.Int).SetString(wholePart, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidAmount, display)
		}
		whole = w
	}
	frac := big.NewInt(0)
	if fracPart != "" {
		f, ok := new(big.Int).SetString(fracPart, 10)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a number", ledger.ErrInvalidAmount, display)
		}
		// "0.01" means 1 * 10^(18-2) wei.
		frac = f.Mul(f, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals-len(fracPart))), nil))
	}

	raw := whole.Mul(whole, unitScale)
	raw.Add(raw, frac)
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be strictly positive", ledger.ErrInvalidAmount)
	}
	return raw, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ToUnixSeconds floors to whole seconds; timestamps on the ledger are
// never fractional.
func ToUnixSeconds(t time.Time) int64 {
	return t.Unix()
}

// FormatTimestamp renders a unix-second timestamp for display. 0 is the
// sentinel for "not yet occurred" and renders as "unset", never as the
// epoch.
func FormatTimestamp(raw int64) string {
	if raw == 0 {
		return TimestampUnset
	}
	return time.Unix(raw, 0).UTC().Format("2006-01-02 15:04:05 UTC")
}

package payments

import (
	"math/rand"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// TechnicalErrorMessage is recorded when a payment fails for operational
// reasons rather than a bank decision.
const TechnicalErrorMessage = "Technical error while processing payment"

// maxNumberLength bounds card and account numbers alike.
const maxNumberLength = 8

var declineReasons = []string{
	"Insufficient funds",
	"Card is blocked",
	"Operation limit exceeded",
	"Suspicious operation",
	"Payment system server error",
}

// ValidateNumber checks a payment number at submission time. Numbers must be
// all digits, at most eight of them, and even. Odd numbers are rejected up
// front rather than being sent to settlement.
func ValidateNumber(number string) error {
	if number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment number required")
	}
	if len(number) > maxNumberLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment number must be at most 8 digits")
	}
	for _, c := range number {
		if c < '0' || c > '9' {
			return pkgerrors.New(pkgerrors.CodeValidation, "payment number must contain only digits")
		}
	}
	if !isEven(number) {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment number must be even")
	}
	return nil
}

// Decide simulates the bank's settlement decision for a payment number. Even
// numbers settle successfully unless they end in zero; everything else is
// declined with a randomly picked reason.
func Decide(number string, rng *rand.Rand) (enums.PaymentStatus, *string) {
	if isEven(number) && !strings.HasSuffix(number, "0") {
		return enums.PaymentStatusSuccess, nil
	}
	reason := declineReasons[rng.Intn(len(declineReasons))]
	return enums.PaymentStatusFailed, &reason
}

// GenerateAccountNumber produces a random even eight-digit number. It can end
// in zero; such a number passes submission but is declined at settlement,
// which mirrors how real instruments sometimes fail only at the bank.
func GenerateAccountNumber(rng *rand.Rand) string {
	evenTail := []byte{'0', '2', '4', '6', '8'}
	var b strings.Builder
	b.WriteByte(byte('1' + rng.Intn(9)))
	for i := 0; i < 6; i++ {
		b.WriteByte(byte('0' + rng.Intn(10)))
	}
	b.WriteByte(evenTail[rng.Intn(len(evenTail))])
	return b.String()
}

func isEven(number string) bool {
	if number == "" {
		return false
	}
	last := number[len(number)-1]
	return (last-'0')%2 == 0
}

package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// ReferralCodeLength is the length of every generated code
	ReferralCodeLength = 8

	// MaxCodeAttempts bounds generate-and-check cycles per user
	MaxCodeAttempts = 5

	referralPrefixLength = 3
	fallbackPrefix       = "USR"
)

// ErrReferralCodeExhausted is returned in strict mode when no unused code was
// found within MaxCodeAttempts
var ErrReferralCodeExhausted = errors.New("no unused referral code found")

// GenerateReferralCode builds an 8 character code: up to three uppercase ASCII
// letters or digits from name, then uppercase hex from random. Names without
// usable characters get the USR prefix.
func GenerateReferralCode(name string, random io.Reader) (string, error) {
	prefix := referralPrefix(name)
	n := ReferralCodeLength - len(prefix)

	buf := make([]byte, (n+1)/2)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	suffix := strings.ToUpper(hex.EncodeToString(buf))[:n]
	return prefix + suffix, nil
}

func referralPrefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		if b.Len() == referralPrefixLength {
			break
		}
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallbackPrefix
	}
	return b.String()
}

// Resolution is the outcome of ResolveUniqueCode
type Resolution struct {
	Code     string
	Attempts int
	Verified bool // false when every candidate was already taken
}

// ResolveUniqueCode calls generate until exists reports an unused code, at most
// MaxCodeAttempts times. After the last attempt the final candidate is returned
// unverified; callers decide whether that is acceptable.
func ResolveUniqueCode(
	ctx context.Context,
	generate func() (string, error),
	exists func(ctx context.Context, code string) (bool, error),
) (Resolution, error) {
	var res Resolution
	for res.Attempts < MaxCodeAttempts {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		code, err := generate()
		if err != nil {
			return res, err
		}
		res.Attempts++
		res.Code = code

		taken, err := exists(ctx, code)
		if err != nil {
			return res, err
		}
		if !taken {
			res.Verified = true
			return res, nil
		}
	}
	return res, nil
}

package domain

import "errors"

// Sentinel errors shared by the persistence implementations
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrReferralCodeNotFound = errors.New("referral code not found")
	ErrSelfReferral         = errors.New("users cannot redeem their own referral code")
	ErrAlreadyReferred      = errors.New("user has already redeemed a referral code")
	ErrBucketNotFound       = errors.New("bucket not found")
)

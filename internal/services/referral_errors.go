package services

import (
	"errors"
	"fmt"
)

// ReferralErrorKind classifies why a referral application did not commit
type ReferralErrorKind string

const (
	KindInvalidFormat       ReferralErrorKind = "InvalidFormat"
	KindCodeNotFound        ReferralErrorKind = "CodeNotFound"
	KindSelfReferral        ReferralErrorKind = "SelfReferral"
	KindAlreadyReferred     ReferralErrorKind = "AlreadyReferred"
	KindAccountNotFound     ReferralErrorKind = "AccountNotFound"
	KindReferrerUnavailable ReferralErrorKind = "ReferrerUnavailable"
	KindTransientFailure    ReferralErrorKind = "TransientFailure"
)

var kindMessages = map[ReferralErrorKind]string{
	KindInvalidFormat:       "Referral codes are 8 uppercase letters or digits",
	KindCodeNotFound:        "This referral code does not exist",
	KindSelfReferral:        "You cannot use your own referral code",
	KindAlreadyReferred:     "A referral code has already been applied to your account",
	KindAccountNotFound:     "Account not found",
	KindReferrerUnavailable: "The owner of this referral code is no longer available",
	KindTransientFailure:    "Could not apply the referral code right now, please try again",
}

// ReferralError is returned by ApplyReferralCode for every non-committed outcome
type ReferralError struct {
	Kind ReferralErrorKind
	Err  error
}

func (e *ReferralError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *ReferralError) Unwrap() error {
	return e.Err
}

// Message is the human-readable text shown to the user
func (e *ReferralError) Message() string {
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

// Retryable reports whether the caller may submit the same request again
func (e *ReferralError) Retryable() bool {
	return e.Kind == KindTransientFailure
}

func newReferralError(kind ReferralErrorKind, err error) *ReferralError {
	return &ReferralError{Kind: kind, Err: err}
}

// IsKind reports whether err is a ReferralError of the given kind
func IsKind(err error, kind ReferralErrorKind) bool {
	var re *ReferralError
	return errors.As(err, &re) && re.Kind == kind
}

// KindOf returns the kind of a ReferralError, or "" for any other error
func KindOf(err error) ReferralErrorKind {
	var re *ReferralError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

package domain

import "time"

// MFAEnrollment is the first half of TOTP enrollment. The candidate secret
// lives only in the signed EnrollmentToken until a code confirms it.
type MFAEnrollment struct {
	Secret          string // base32
	ProvisioningURI string // otpauth://
	EnrollmentToken string
	ExpiresAt       time.Time
}

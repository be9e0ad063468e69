package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownProvider          = errors.New("unknown identity provider")
	ErrMissingIdentityAttribute = errors.New("identity is missing a required attribute")
)

// Provider is the closed set of sign-in methods. LOCAL is email and password.
type Provider string

const (
	ProviderLocal    Provider = "LOCAL"
	ProviderGoogle   Provider = "GOOGLE"
	ProviderFacebook Provider = "FACEBOOK"
	ProviderGitHub   Provider = "GITHUB"
)

// ParseProvider accepts the external providers case-insensitively. LOCAL is
// not an external provider and is rejected.
func ParseProvider(s string) (Provider, error) {
	switch p := Provider(strings.ToUpper(strings.TrimSpace(s))); p {
	case ProviderGoogle, ProviderFacebook, ProviderGitHub:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
}

// ExternalIdentity is a provider principal normalised to our fields.
type ExternalIdentity struct {
	Provider  Provider
	Subject   string
	Email     string
	Name      string
	AvatarURL string
}

// SplitName splits a display name into first and last name on the first
// space.
func (e ExternalIdentity) SplitName() (first, last string) {
	first, last, _ = strings.Cut(strings.TrimSpace(e.Name), " ")
	return first, strings.TrimSpace(last)
}

// MapAttributes converts the raw provider attribute map into an
// ExternalIdentity. Email and subject are required.
func (p Provider) MapAttributes(attrs map[string]any) (ExternalIdentity, error) {
	id := ExternalIdentity{
		Provider: p,
		Email:    strings.ToLower(strings.TrimSpace(stringAttr(attrs, "email"))),
		Name:     strings.TrimSpace(stringAttr(attrs, "name")),
	}

	switch p {
	case ProviderGoogle:
		id.Subject = stringAttr(attrs, "sub")
		id.AvatarURL = stringAttr(attrs, "picture")
	case ProviderFacebook:
		id.Subject = stringAttr(attrs, "id")
		id.AvatarURL = nestedString(attrs, "picture", "data", "url")
	case ProviderGitHub:
		id.Subject = idAttr(attrs, "id")
		id.AvatarURL = stringAttr(attrs, "avatar_url")
	default:
		return ExternalIdentity{}, fmt.Errorf("%w: %q", ErrUnknownProvider, string(p))
	}

	if id.Email == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: email", ErrMissingIdentityAttribute)
	}
	if id.Subject == "" {
		return ExternalIdentity{}, fmt.Errorf("%w: subject", ErrMissingIdentityAttribute)
	}
	return id, nil
}

func stringAttr(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func nestedString(attrs map[string]any, path ...string) string {
	cur := attrs
	for i, key := range path {
		if i == len(path)-1 {
			return stringAttr(cur, key)
		}
		next, ok := cur[key].(map[string]any)
		if !ok {
			return ""
		}
		cur = next
	}
	return ""
}

// idAttr reads a numeric or string id. Decoded JSON numbers arrive as
// float64 or json.Number depending on the decoder.
func idAttr(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/aussiebroadwan/autopay/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	for in, want := range map[string]domain.Provider{
		"google":   domain.ProviderGoogle,
		"FACEBOOK": domain.ProviderFacebook,
		" GitHub ": domain.ProviderGitHub,
	} {
		got, err := domain.ParseProvider(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got)
	}

	for _, in := range []string{"", "local", "LOCAL", "twitter"} {
		_, err := domain.ParseProvider(in)
		require.ErrorIs(t, err, domain.ErrUnknownProvider, in)
	}
}

func TestMapAttributes(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.Provider
		attrs    map[string]any
		want     domain.ExternalIdentity
	}{
		{
			name:     "google",
			provider: domain.ProviderGoogle,
			attrs: map[string]any{
				"sub":     "1098",
				"email":   "Ada@Example.com",
				"name":    "Ada Lovelace",
				"picture": "https://img/ada.png",
			},
			want: domain.ExternalIdentity{
				Provider:  domain.ProviderGoogle,
				Subject:   "1098",
				Email:     "ada@example.com",
				Name:      "Ada Lovelace",
				AvatarURL: "https://img/ada.png",
			},
		},
		{
			name:     "facebook nested picture",
			provider: domain.ProviderFacebook,
			attrs: map[string]any{
				"id":    "fb-77",
				"email": "grace@example.com",
				"name":  "Grace Hopper",
				"picture": map[string]any{
					"data": map[string]any{"url": "https://fb/grace.jpg"},
				},
			},
			want: domain.ExternalIdentity{
				Provider:  domain.ProviderFacebook,
				Subject:   "fb-77",
				Email:     "grace@example.com",
				Name:      "Grace Hopper",
				AvatarURL: "https://fb/grace.jpg",
			},
		},
		{
			name:     "facebook without picture",
			provider: domain.ProviderFacebook,
			attrs:    map[string]any{"id": "fb-78", "email": "x@example.com"},
			want: domain.ExternalIdentity{
				Provider: domain.ProviderFacebook,
				Subject:  "fb-78",
				Email:    "x@example.com",
			},
		},
		{
			name:     "github numeric id",
			provider: domain.ProviderGitHub,
			attrs: map[string]any{
				"id":         float64(583231),
				"email":      "octo@example.com",
				"name":       "Octo Cat",
				"avatar_url": "https://gh/octo.png",
			},
			want: domain.ExternalIdentity{
				Provider:  domain.ProviderGitHub,
				Subject:   "583231",
				Email:     "octo@example.com",
				Name:      "Octo Cat",
				AvatarURL: "https://gh/octo.png",
			},
		},
		{
			name:     "github json.Number id",
			provider: domain.ProviderGitHub,
			attrs:    map[string]any{"id": json.Number("42"), "email": "n@example.com"},
			want: domain.ExternalIdentity{
				Provider: domain.ProviderGitHub,
				Subject:  "42",
				Email:    "n@example.com",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.provider.MapAttributes(tt.attrs)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestMapAttributes_MissingEmail(t *testing.T) {
	for _, p := range []domain.Provider{domain.ProviderGoogle, domain.ProviderFacebook, domain.ProviderGitHub} {
		_, err := p.MapAttributes(map[string]any{"sub": "1", "id": "1", "name": "No Mail"})
		require.ErrorIs(t, err, domain.ErrMissingIdentityAttribute, string(p))
	}
}

func TestMapAttributes_MissingSubject(t *testing.T) {
	_, err := domain.ProviderGoogle.MapAttributes(map[string]any{"email": "a@example.com"})
	require.ErrorIs(t, err, domain.ErrMissingIdentityAttribute)
}

func TestMapAttributes_LocalRejected(t *testing.T) {
	_, err := domain.ProviderLocal.MapAttributes(map[string]any{"email": "a@example.com"})
	require.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestSplitName(t *testing.T) {
	for name, want := range map[string][2]string{
		"Ada Lovelace":          {"Ada", "Lovelace"},
		"Ada":                   {"Ada", ""},
		"Jean Claude Van Damme": {"Jean", "Claude Van Damme"},
		"":                      {"", ""},
	} {
		first, last := domain.ExternalIdentity{Name: name}.SplitName()
		require.Equal(t, want, [2]string{first, last}, name)
	}
}

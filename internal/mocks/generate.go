// Package mocks provides mock implementations for testing the console-auth session service.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	idp := mocks.NewMockIdentityProvider(ctrl)
//	idp.EXPECT().InitiateAuth(gomock.Any(), "bob", "pw1").Return(domainauth.Challenge(domainauth.ChallengePasswordRequired, "s1"), nil)
package mocks

// Generate mock for IdentityProvider interface from internal/ports package.
// This creates MockIdentityProvider with methods for all IdentityProvider interface methods:
// InitiateAuth, RespondToPasswordChallenge, RespondToMfaChallenge, GetMfaStatus,
// BeginTotpEnrollment, VerifyTotpEnrollment, SetPreferredMfaFactor
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=identity_provider_mock.go github.com/target/console-auth/internal/ports IdentityProvider

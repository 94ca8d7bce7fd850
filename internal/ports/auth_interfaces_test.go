package ports_test

import (
	"testing"

	"github.com/target/console-auth/internal/mocks"
	authdoubles "github.com/target/console-auth/internal/mocks/auth"
	"github.com/target/console-auth/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*mocks.MockIdentityProvider)(nil)
	var _ ports.ProfileSource = (*authdoubles.StaticProfileSource)(nil)
	var _ ports.ProfileCache = (*authdoubles.MemoryProfileCache)(nil)
	var _ ports.AuditSink = (*authdoubles.RecordingAuditSink)(nil)
	var _ ports.AuthObserver = (*authdoubles.RecordingObserver)(nil)
	var _ ports.RoleMapper = (*authdoubles.StaticRoleMapper)(nil)
}

package magiccode

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/magiccode/testutils"
)

type fakeDirectory struct {
	users map[uint]*DirectoryUser
}

func (d *fakeDirectory) LookupUser(id uint) (*DirectoryUser, error) {
	user, ok := d.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return user, nil
}

type fakeRegistry struct {
	clients       map[uint]*RegisteredClient
	defaultClient *RegisteredClient
}

func (r *fakeRegistry) LookupClient(id uint) (*RegisteredClient, error) {
	client, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return client, nil
}

func (r *fakeRegistry) DefaultClientForUser(userID uint) (*RegisteredClient, error) {
	if r.defaultClient == nil {
		return nil, ErrClientNotFound
	}
	return r.defaultClient, nil
}

func (r *fakeRegistry) ClientsForUser(userID uint) ([]RegisteredClient, error) {
	return nil, nil
}

// fakeGuard counts events per (name, identifier) pair and records
// every Register and Clear call so tests can assert the exact flood
// discipline of the verification state machine.
type fakeGuard struct {
	counts     map[string]int
	registered []string
	cleared    []string
}

func newFakeGuard() *fakeGuard {
	return &fakeGuard{counts: make(map[string]int)}
}

func guardKey(name, identifier string) string {
	return name + ":" + identifier
}

func (g *fakeGuard) IsAllowed(name string, threshold int, window time.Duration, identifier string) (bool, error) {
	return g.counts[guardKey(name, identifier)] < threshold, nil
}

func (g *fakeGuard) Register(name string, window time.Duration, identifier string) error {
	key := guardKey(name, identifier)
	g.counts[key]++
	g.registered = append(g.registered, key)
	return nil
}

func (g *fakeGuard) Clear(name, identifier string) error {
	key := guardKey(name, identifier)
	delete(g.counts, key)
	g.cleared = append(g.cleared, key)
	return nil
}

const (
	testUserID   = uint(1)
	testClientID = uint(1)
	testIP       = "198.51.100.7"
)

func newTestService(t *testing.T) (*Service, *fakeGuard) {
	t.Helper()

	cfg := testutils.GetTestConfig()
	cfg.MagicCode.LoginPermittedOperations = []string{"login", "register"}

	db := testutils.SetupTestDB(t, &MagicCode{})
	guard := newFakeGuard()

	directory := &fakeDirectory{users: map[uint]*DirectoryUser{
		testUserID: {ID: testUserID, Username: "testuser", Email: testutils.TestAddresses.UserEmail},
	}}
	registry := &fakeRegistry{
		clients: map[uint]*RegisteredClient{
			testClientID: {ID: testClientID, ClientID: "web-app", Label: "Web App"},
			2:            {ID: 2, ClientID: "kiosk", Label: "Kiosk"},
		},
		defaultClient: &RegisteredClient{ID: 9, ClientID: "default-app", Label: "Default App", IsDefault: true},
	}

	return NewService(cfg, NewGormStore(db), guard, directory, registry, nil), guard
}

func TestService_Issue(t *testing.T) {
	t.Run("issues a well-formed active code", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")

		require.NoError(t, err)
		assert.Regexp(t, `^[1-9A-NP-Z]{3}-[1-9A-NP-Z]{3}$`, code.Value)
		assert.NotZero(t, code.ID)
		assert.NotEmpty(t, code.UUID)
		assert.Equal(t, testUserID, code.OwnerUserID)
		assert.Equal(t, testClientID, code.ClientID)
		assert.False(t, code.IsRevoked())
		assert.Greater(t, code.ExpiresAt, time.Now().Unix())
	})

	t.Run("defaults email to the directory address", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")

		require.NoError(t, err)
		assert.Equal(t, testutils.TestAddresses.UserEmail, code.Email)
	})

	t.Run("explicit email overrides the directory", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, testutils.TestAddresses.OverrideEmail)

		require.NoError(t, err)
		assert.Equal(t, testutils.TestAddresses.OverrideEmail, code.Email)
	})

	t.Run("login-permitted operation sets login eligibility", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("login", testUserID, testClientID, "")
		require.NoError(t, err)
		assert.True(t, code.IsLoginAllowed())

		code, err = service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)
		assert.False(t, code.IsLoginAllowed())
	})

	t.Run("zero client resolves the default client", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, 0, "")

		require.NoError(t, err)
		assert.Equal(t, uint(9), code.ClientID)
	})

	t.Run("unknown client", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, 42, "")

		require.ErrorIs(t, err, ErrClientNotFound)
		assert.Nil(t, code)
	})

	t.Run("unknown user", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", 42, testClientID, "")

		require.ErrorIs(t, err, ErrUserNotFound)
		assert.Nil(t, code)
	})

	t.Run("duplicate generation budget exhausts", func(t *testing.T) {
		service, _ := newTestService(t)
		// A single-symbol alphabet makes the second issuance collide on
		// every attempt.
		service.generator = NewGenerator("A", 1)

		_, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.ErrorIs(t, err, ErrDuplicateCode)
		assert.Nil(t, code)
	})
}

func TestService_Verify_SingleUse(t *testing.T) {
	service, guard := newTestService(t)

	code, err := service.Issue("set-password", testUserID, testClientID, "")
	require.NoError(t, err)

	result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)

	result, err = service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
	require.NoError(t, err)
	assert.Equal(t, ResultInvalid, result)

	assert.Contains(t, guard.cleared, guardKey(FloodEventUser, "1"))
}

func TestService_Verify_FieldMismatchesCollapseToInvalid(t *testing.T) {
	service, _ := newTestService(t)

	code, err := service.Issue("set-password", testUserID, testClientID, "")
	require.NoError(t, err)

	tests := []struct {
		name     string
		value    string
		op       string
		userID   uint
		clientID uint
		email    string
	}{
		{"wrong value", "XXX-XXX", "set-password", testUserID, testClientID, ""},
		{"wrong operation", code.Value, "delete-account", testUserID, testClientID, ""},
		{"wrong client", code.Value, "set-password", testUserID, 2, ""},
		{"wrong email", code.Value, "set-password", testUserID, testClientID, "other@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.Verify(tt.value, tt.op, ModeOperation, tt.userID, tt.clientID, tt.email, testIP)
			require.NoError(t, err)
			assert.Equal(t, ResultInvalid, result)
		})
	}

	// The code survives every mismatch above.
	result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
	require.NoError(t, err)
	assert.Equal(t, ResultSuccess, result)
}

func TestService_Verify_LoginEligibility(t *testing.T) {
	t.Run("non-permitted operation is never login-verifiable", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		result, err := service.Verify(code.Value, "set-password", ModeLogin, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)
	})

	t.Run("permitted operation supports one login and one operation use", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("register", testUserID, testClientID, "")
		require.NoError(t, err)

		result, err := service.Verify(code.Value, "register", ModeLogin, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)

		// Login eligibility is consumed.
		result, err = service.Verify(code.Value, "register", ModeLogin, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)

		// The operation use is still available exactly once.
		result, err = service.Verify(code.Value, "register", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)

		result, err = service.Verify(code.Value, "register", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)
	})

	t.Run("login operation is fully revoked by a login-mode use", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("login", testUserID, testClientID, "")
		require.NoError(t, err)

		result, err := service.Verify(code.Value, "login", ModeLogin, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)

		result, err = service.Verify(code.Value, "login", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)
	})
}

func TestService_Verify_ExpiredCode(t *testing.T) {
	service, _ := newTestService(t)

	code, err := service.Issue("set-password", testUserID, testClientID, "")
	require.NoError(t, err)

	code.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	require.NoError(t, service.store.Save(code))

	result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
	require.NoError(t, err)
	assert.Equal(t, ResultInvalid, result)
}

func TestService_Verify_UserFloodLimit(t *testing.T) {
	t.Run("four failures then the correct code succeeds", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			result, err := service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", testIP)
			require.NoError(t, err)
			assert.Equal(t, ResultInvalid, result)
		}

		result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)
	})

	t.Run("five failures block the user even with the correct code", func(t *testing.T) {
		service, guard := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			result, err := service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", testIP)
			require.NoError(t, err)
			assert.Equal(t, ResultInvalid, result)
		}

		result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultBlockedByUser, result)

		// A user-blocked attempt still costs one IP event but must not
		// add a sixth user event.
		assert.Equal(t, 6, guard.counts[guardKey(FloodEventIP, testIP)])
		assert.Equal(t, 5, guard.counts[guardKey(FloodEventUser, "1")])
	})

	t.Run("success clears the user counter but never the IP counter", func(t *testing.T) {
		service, guard := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			_, err := service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", testIP)
			require.NoError(t, err)
		}

		result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)

		assert.Zero(t, guard.counts[guardKey(FloodEventUser, "1")])
		assert.Equal(t, 3, guard.counts[guardKey(FloodEventIP, testIP)])
		assert.NotContains(t, guard.cleared, guardKey(FloodEventIP, testIP))
	})
}

func TestService_Verify_IPFloodLimit(t *testing.T) {
	t.Run("shared IP blocks across distinct users, fresh IP restores", func(t *testing.T) {
		service, _ := newTestService(t)

		for uid := 0; uid < 50; uid++ {
			user := uint(uid + 100)
			service.users.(*fakeDirectory).users[user] = &DirectoryUser{ID: user, Email: fmt.Sprintf("u%d@example.com", user)}
			result, err := service.Verify("XXX-XXX", "set-password", ModeOperation, user, testClientID, "", testIP)
			require.NoError(t, err)
			assert.Equal(t, ResultInvalid, result)
		}

		result, err := service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultBlockedByIP, result)

		result, err = service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", "203.0.113.99")
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)
	})

	t.Run("IP-blocked attempts never touch the user counter", func(t *testing.T) {
		service, guard := newTestService(t)

		guard.counts[guardKey(FloodEventIP, testIP)] = 50

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		for i := 0; i < 10; i++ {
			result, err := service.Verify("XXX-XXX", "set-password", ModeOperation, testUserID, testClientID, "", testIP)
			require.NoError(t, err)
			assert.Equal(t, ResultBlockedByIP, result)
		}

		assert.Zero(t, guard.counts[guardKey(FloodEventUser, "1")])
		assert.Equal(t, 60, guard.counts[guardKey(FloodEventIP, testIP)])

		// From a fresh IP the user has their full budget and the
		// correct code still verifies.
		result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", "203.0.113.99")
		require.NoError(t, err)
		assert.Equal(t, ResultSuccess, result)
	})
}

func TestService_Revoke(t *testing.T) {
	t.Run("revokes an active code", func(t *testing.T) {
		service, _ := newTestService(t)

		code, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		require.NoError(t, service.Revoke(code.ID))

		loaded, err := service.store.Load(code.ID)
		require.NoError(t, err)
		assert.True(t, loaded.IsRevoked())

		result, err := service.Verify(code.Value, "set-password", ModeOperation, testUserID, testClientID, "", testIP)
		require.NoError(t, err)
		assert.Equal(t, ResultInvalid, result)
	})

	t.Run("missing id is a no-op", func(t *testing.T) {
		service, _ := newTestService(t)

		assert.NoError(t, service.Revoke(9999))
	})

	t.Run("revoke multiple continues past already-revoked ids", func(t *testing.T) {
		service, _ := newTestService(t)

		first, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)
		second, err := service.Issue("set-password", testUserID, testClientID, "")
		require.NoError(t, err)

		require.NoError(t, service.Revoke(first.ID))

		require.NoError(t, service.RevokeMultiple([]uint{first.ID, 9999, second.ID}))

		loaded, err := service.store.Load(second.ID)
		require.NoError(t, err)
		assert.True(t, loaded.IsRevoked())
	})
}

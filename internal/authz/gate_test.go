package authz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/logging"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
)

const (
	world         = "world.dcl.eth"
	owner         = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	authoritative = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	extra         = "0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb"
	stranger      = "0xd1220a0cf47c7b9be7a2e6ba89f429762e7b9adb"
)

type fakeChecker struct {
	allowed map[string]bool
	err     error
	calls   int
}

func (f *fakeChecker) HasWorldPermission(ctx context.Context, w, address string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[strings.ToLower(address)], nil
}

func newGate(checker PermissionChecker, out *bytes.Buffer) *Gate {
	logger := logging.NewNop()
	if out != nil {
		logger = logging.NewWithOutput("test", "debug", "json", out)
	}
	return NewGate(checker, Config{
		AuthoritativeServerAddress: authoritative,
		AuthorizedAddresses:        []string{" ", extra, ""},
	}, logger)
}

func assertNotAuthorized(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	serviceErr := svcerrors.GetServiceError(err)
	require.NotNil(t, serviceErr)
	assert.Equal(t, http.StatusUnauthorized, serviceErr.HTTPStatus)
	assert.Equal(t, message, serviceErr.Message)
}

func TestCheck_NoSigner(t *testing.T) {
	checker := &fakeChecker{}
	err := newGate(checker, nil).Check(context.Background(), world, "", true)
	assertNotAuthorized(t, err, MsgNoSigner)
	assert.Zero(t, checker.calls, "no permission lookup without a signer")
}

func TestCheck_OwnerAllowed(t *testing.T) {
	checker := &fakeChecker{allowed: map[string]bool{owner: true}}
	gate := newGate(checker, nil)
	assert.NoError(t, gate.Check(context.Background(), world, owner, false))
	assert.NoError(t, gate.Check(context.Background(), world, owner, true))
}

func TestCheck_FailsClosedOnLookupError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection refused")}
	gate := newGate(checker, nil)

	// Even a static address is denied when the lookup fails.
	err := gate.Check(context.Background(), world, authoritative, true)
	assertNotAuthorized(t, err, MsgVerifyFailed)
}

func TestCheck_StaticAddresses(t *testing.T) {
	checker := &fakeChecker{allowed: map[string]bool{}}
	gate := newGate(checker, nil)

	tests := []struct {
		name        string
		signer      string
		allowStatic bool
		wantErr     bool
	}{
		{"authoritative with static policy", authoritative, true, false},
		{"authoritative lower case", strings.ToLower(authoritative), true, false},
		{"extra address", strings.ToUpper(extra[2:]), true, true}, // missing 0x is a different address
		{"extra address mixed case", "0x" + strings.ToUpper(extra[2:]), true, false},
		{"authoritative with owner-only policy", authoritative, false, true},
		{"stranger", stranger, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Check(context.Background(), world, tt.signer, tt.allowStatic)
			if tt.wantErr {
				assertNotAuthorized(t, err, MsgSignerUnauthorized)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCheck_RedactsAuthoritativeServer(t *testing.T) {
	var out bytes.Buffer
	checker := &fakeChecker{err: errors.New("upstream down")}
	gate := newGate(checker, &out)

	_ = gate.Check(context.Background(), world, authoritative, true)

	logs := out.String()
	assert.NotContains(t, strings.ToLower(logs), strings.ToLower(authoritative))
	assert.Contains(t, logs, redactedSigner)
}

func TestSignerLabel(t *testing.T) {
	gate := newGate(&fakeChecker{}, nil)
	assert.Equal(t, redactedSigner, gate.SignerLabel(strings.ToLower(authoritative)))
	assert.Equal(t, stranger, gate.SignerLabel(stranger))

	noAuthoritative := NewGate(&fakeChecker{}, Config{}, nil)
	assert.Equal(t, stranger, noAuthoritative.SignerLabel(stranger))
}

func TestMiddleware(t *testing.T) {
	checker := &fakeChecker{allowed: map[string]bool{owner: true}}
	gate := newGate(checker, nil)

	reached := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	})

	serve := func(policy Policy, signer string) *httptest.ResponseRecorder {
		reached = false
		req := httptest.NewRequest(http.MethodGet, "/env", nil)
		ctx := signedfetch.WithIdentity(req.Context(), &signedfetch.Identity{SignerAddress: signer}, world)
		rr := httptest.NewRecorder()
		gate.Middleware(policy)(next).ServeHTTP(rr, req.WithContext(ctx))
		return rr
	}

	rr := serve(OwnerOrDeployer, owner)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, reached)

	rr = serve(OwnerOrDeployer, authoritative)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, reached)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, MsgSignerUnauthorized, body["message"])

	rr = serve(OwnerDeployerOrAuthorized, authoritative)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serve(OwnerDeployerOrAuthorized, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), MsgNoSigner)
}

func TestPolicyString(t *testing.T) {
	assert.Equal(t, "owner_or_deployer", OwnerOrDeployer.String())
	assert.Equal(t, "owner_deployer_or_authorized", OwnerDeployerOrAuthorized.String())
}

package signedfetch

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSigner = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"
	testSecret = "signed-fetch-secret"
)

func signToken(t *testing.T, secret string, claims *Claims, method jwt.SigningMethod) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() *Claims {
	return &Claims{
		Signer:   testSigner,
		Metadata: json.RawMessage(`{"realm":{"serverName":"world.dcl.eth"}}`),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
}

func TestWorldName(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		want     string
	}{
		{"realm server name", `{"realm":{"serverName":"a.dcl.eth"},"realmName":"b.dcl.eth"}`, "a.dcl.eth"},
		{"realm name", `{"realmName":"b.dcl.eth","worldName":"c.dcl.eth"}`, "b.dcl.eth"},
		{"world name", `{"worldName":"c.dcl.eth"}`, "c.dcl.eth"},
		{"blank falls through", `{"realm":{"serverName":"  "},"worldName":"c.dcl.eth"}`, "c.dcl.eth"},
		{"non-string ignored", `{"realmName":42}`, ""},
		{"missing", `{"other":"x"}`, ""},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorldName(json.RawMessage(tt.metadata)))
		})
	}
}

func TestHeaderVerifier(t *testing.T) {
	v := NewHeaderVerifier()

	req := httptest.NewRequest(http.MethodGet, "/values/k", nil)
	req.Header.Set(SignerHeader, testSigner)
	req.Header.Set(MetadataHeader, `{"realmName":"world.dcl.eth"}`)

	identity, err := v.Verify(req)
	require.NoError(t, err)
	assert.Equal(t, testSigner, identity.SignerAddress)
	assert.Equal(t, "world.dcl.eth", WorldName(identity.Metadata))
}

func TestHeaderVerifier_Rejects(t *testing.T) {
	v := NewHeaderVerifier()

	req := httptest.NewRequest(http.MethodGet, "/values/k", nil)
	req.Header.Set(SignerHeader, "not-an-address")
	_, err := v.Verify(req)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	req = httptest.NewRequest(http.MethodGet, "/values/k", nil)
	req.Header.Set(MetadataHeader, `{broken`)
	_, err = v.Verify(req)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHeaderVerifier_ChecksumIsOptIn(t *testing.T) {
	const unchecksummed = "0xDBf03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	newReq := func(signer string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/values/k", nil)
		req.Header.Set(SignerHeader, signer)
		return req
	}

	identity, err := NewHeaderVerifier().Verify(newReq(unchecksummed))
	require.NoError(t, err)
	assert.Equal(t, unchecksummed, identity.SignerAddress)

	strict := NewHeaderVerifier().WithStrictChecksum(true)
	_, err = strict.Verify(newReq(unchecksummed))
	assert.ErrorIs(t, err, ErrInvalidSignature)

	_, err = strict.Verify(newReq("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB"))
	assert.NoError(t, err)
}

func TestHeaderVerifier_NoSigner(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/values/k", nil)
	identity, err := NewHeaderVerifier().Verify(req)
	require.NoError(t, err)
	assert.Empty(t, identity.SignerAddress)
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/env/API_KEY", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(), jwt.SigningMethodHS256))

	identity, err := v.Verify(req)
	require.NoError(t, err)
	assert.Equal(t, testSigner, identity.SignerAddress)
	assert.Equal(t, "world.dcl.eth", WorldName(identity.Metadata))
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	badSigner := validClaims()
	badSigner.Signer = "0x123"

	tests := []struct {
		name   string
		header string
	}{
		{"wrong secret", "Bearer " + signToken(t, "other-secret", validClaims(), jwt.SigningMethodHS256)},
		{"wrong algorithm", "Bearer " + signToken(t, testSecret, validClaims(), jwt.SigningMethodHS512)},
		{"expired", "Bearer " + signToken(t, testSecret, expired, jwt.SigningMethodHS256)},
		{"malformed signer", "Bearer " + signToken(t, testSecret, badSigner, jwt.SigningMethodHS256)},
		{"not bearer", "Basic abc"},
		{"garbage", "Bearer not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/env", nil)
			req.Header.Set("Authorization", tt.header)
			_, err := v.Verify(req)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}
}

func TestJWTVerifier_ChecksumIsOptIn(t *testing.T) {
	claims := validClaims()
	claims.Signer = "0xDBf03B407c01E7cD3CBea99509d93f8DDDC8C6FB"
	header := "Bearer " + signToken(t, testSecret, claims, jwt.SigningMethodHS256)

	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/env", nil)
	req.Header.Set("Authorization", header)
	identity, err := v.Verify(req)
	require.NoError(t, err)
	assert.Equal(t, claims.Signer, identity.SignerAddress)

	_, err = v.WithStrictChecksum(true).Verify(req)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestJWTVerifier_NoHeader(t *testing.T) {
	v, err := NewJWTVerifier(testSecret)
	require.NoError(t, err)

	identity, err := v.Verify(httptest.NewRequest(http.MethodGet, "/env", nil))
	require.NoError(t, err)
	assert.Empty(t, identity.SignerAddress)
}

func TestNewJWTVerifier_RequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier(" ")
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	var gotSigner, gotWorld string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSigner = SignerFrom(r.Context())
		gotWorld = WorldFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Middleware(NewHeaderVerifier(), nil)(next)

	t.Run("verified", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/values", nil)
		req.Header.Set(SignerHeader, testSigner)
		req.Header.Set(MetadataHeader, `{"worldName":"world.dcl.eth"}`)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, testSigner, gotSigner)
		assert.Equal(t, "world.dcl.eth", gotWorld)
	})

	t.Run("invalid signature", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/values", nil)
		req.Header.Set(SignerHeader, "0xnope")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("missing world", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/values", nil)
		req.Header.Set(SignerHeader, testSigner)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid world name")
	})
}

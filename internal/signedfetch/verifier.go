// Package signedfetch is the boundary to the signed-fetch verifier. It turns a
// request into a verified signer address plus the identity metadata the
// signer attached, and extracts the target world name from that metadata.
package signedfetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/worldstore/internal/ethaddr"
)

const (
	// SignerHeader carries the address recovered by an upstream verifying gateway.
	SignerHeader = "X-Signer-Address"
	// MetadataHeader carries the JSON metadata the signer attached to the request.
	MetadataHeader = "X-Identity-Metadata"
)

// ErrInvalidSignature is returned when a request carries an identity that fails verification.
var ErrInvalidSignature = errors.New("signedfetch: invalid signed request")

// Identity is the outcome of a successful verification. SignerAddress is
// empty when the request carried no signature at all.
type Identity struct {
	SignerAddress string
	Metadata      json.RawMessage
}

// Verifier verifies one incoming request.
type Verifier interface {
	Verify(r *http.Request) (*Identity, error)
}

// =============================================================================
// Header verifier
// =============================================================================

// HeaderVerifier trusts identity headers set by a gateway that already
// verified the signed-fetch chain.
type HeaderVerifier struct {
	strictChecksum bool
}

// NewHeaderVerifier creates a HeaderVerifier.
func NewHeaderVerifier() *HeaderVerifier {
	return &HeaderVerifier{}
}

// WithStrictChecksum makes mixed-case signer addresses fail unless they
// carry a valid EIP-55 checksum.
func (v *HeaderVerifier) WithStrictChecksum(strict bool) *HeaderVerifier {
	v.strictChecksum = strict
	return v
}

// Verify reads the signer and metadata headers.
func (v *HeaderVerifier) Verify(r *http.Request) (*Identity, error) {
	signer := strings.TrimSpace(r.Header.Get(SignerHeader))
	if err := checkSigner(signer, v.strictChecksum); err != nil {
		return nil, err
	}

	metadata, err := parseMetadata(r.Header.Get(MetadataHeader))
	if err != nil {
		return nil, err
	}

	return &Identity{SignerAddress: signer, Metadata: metadata}, nil
}

// =============================================================================
// JWT verifier
// =============================================================================

// Claims are the claims of a signed-fetch token.
type Claims struct {
	Signer   string          `json:"signer"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HS256 bearer tokens minted by a trusted signer service.
type JWTVerifier struct {
	secret         []byte
	strictChecksum bool
}

// NewJWTVerifier creates a verifier for the given shared secret.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("signedfetch: JWT secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// WithStrictChecksum makes mixed-case signer claims fail unless they carry a
// valid EIP-55 checksum.
func (v *JWTVerifier) WithStrictChecksum(strict bool) *JWTVerifier {
	v.strictChecksum = strict
	return v
}

// Verify validates the bearer token. A request without an Authorization header
// yields an empty identity so the authorization gate can reject it.
func (v *JWTVerifier) Verify(r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return &Identity{}, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, fmt.Errorf("%w: invalid Authorization header format", ErrInvalidSignature)
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	signer := strings.TrimSpace(claims.Signer)
	if err := checkSigner(signer, v.strictChecksum); err != nil {
		return nil, err
	}

	return &Identity{SignerAddress: signer, Metadata: claims.Metadata}, nil
}

// checkSigner accepts an empty signer; the authorization gate rejects those.
func checkSigner(signer string, strict bool) error {
	if signer == "" {
		return nil
	}
	valid := ethaddr.IsValid
	if strict {
		valid = ethaddr.IsChecksummed
	}
	if !valid(signer) {
		return fmt.Errorf("%w: malformed signer address", ErrInvalidSignature)
	}
	return nil
}

// =============================================================================
// Metadata
// =============================================================================

func parseMetadata(raw string) (json.RawMessage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("%w: metadata is not valid JSON", ErrInvalidSignature)
	}
	return json.RawMessage(raw), nil
}

// worldNamePaths are tried in order. Scene requests carry the realm block,
// server-side callers put the name at the top level.
var worldNamePaths = []string{"realm.serverName", "realmName", "worldName"}

// WorldName extracts the target world from identity metadata.
func WorldName(metadata json.RawMessage) string {
	if len(metadata) == 0 {
		return ""
	}
	for _, path := range worldNamePaths {
		if value := gjson.GetBytes(metadata, path); value.Type == gjson.String {
			if name := strings.TrimSpace(value.String()); name != "" {
				return name
			}
		}
	}
	return ""
}

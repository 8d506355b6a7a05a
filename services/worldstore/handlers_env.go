package worldstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/pagination"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
	"github.com/R3E-Network/worldstore/internal/storage"
)

// Decryption failures mean corrupted rows or a rotated key, never bad input.
const msgEnvReadFailed = "Failed to read env value"

// =============================================================================
// Env Handlers
// =============================================================================

// Plaintext never leaves these handlers except in responses; only keys and
// sizes are logged.

func (s *Service) handleGetEnv(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	secret, err := s.env.GetSecret(ctx, world, key)
	recordStorage(storage.NamespaceEnv, "get", err)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, msgValueNotFound)
		return
	}
	if err != nil {
		s.respondError(w, r, err, "Failed to get value")
		return
	}

	plaintext, err := s.cipher.Decrypt(secret.Envelope)
	if err != nil {
		s.respondError(w, r, svcerrors.Internal(msgEnvReadFailed, err), msgEnvReadFailed)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, EnvValueResponse{Value: plaintext})
}

func (s *Service) handleSetEnv(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	plaintext, ok := s.decodeEnvValue(w, r)
	if !ok {
		return
	}

	// Limits apply to the plaintext, not the envelope.
	err := s.validator.ValidateUpsert(ctx, storage.NamespaceEnv, plaintext, func(ctx context.Context) (storage.SizeInfo, error) {
		return s.env.SizeInfo(ctx, world, key)
	})
	if err != nil {
		s.respondError(w, r, err, "Failed to validate storage limits")
		return
	}

	envelope, err := s.cipher.Encrypt(plaintext)
	if err != nil {
		s.respondError(w, r, err, "Failed to encrypt value")
		return
	}

	secret, err := s.env.SetSecret(ctx, world, key, envelope, storage.SizeOf(plaintext))
	recordStorage(storage.NamespaceEnv, "set", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to store value")
		return
	}

	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"key":        key,
		"size_bytes": secret.SizeBytes,
	}).Info("Env value stored")
	httputil.WriteJSON(w, http.StatusOK, EnvValueResponse{Value: plaintext})
}

func (s *Service) handleDeleteEnv(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	err := s.env.DeleteSecret(ctx, world, key)
	recordStorage(storage.NamespaceEnv, "delete", err)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, msgValueNotFound)
		return
	}
	if err != nil {
		s.respondError(w, r, err, "Failed to delete value")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleDeleteAllEnv(w http.ResponseWriter, r *http.Request) {
	if !requireConfirmation(w, r) {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	deleted, err := s.env.DeleteAll(ctx, world)
	recordStorage(storage.NamespaceEnv, "delete_all", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to delete values")
		return
	}

	s.Logger().LogSecurityEvent(ctx, "env_values_cleared", map[string]interface{}{"deleted": deleted})
	httputil.WriteJSON(w, http.StatusOK, DeleteAllResponse{Deleted: deleted})
}

func (s *Service) handleListEnv(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	params := pagination.ParseLenient(r.URL.Query(), s.pages)

	secrets, err := s.env.ListSecrets(ctx, world, listOptions(params))
	recordStorage(storage.NamespaceEnv, "list", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}
	total, err := s.env.CountSecrets(ctx, world, params.Prefix)
	recordStorage(storage.NamespaceEnv, "count", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}

	entries := make([]Entry, 0, len(secrets))
	for _, secret := range secrets {
		plaintext, err := s.cipher.Decrypt(secret.Envelope)
		if err != nil {
			s.respondError(w, r, svcerrors.Internal(msgEnvReadFailed, err), msgEnvReadFailed)
			return
		}
		entries = append(entries, Entry{Key: secret.Key, Value: plaintext})
	}

	writePage(w, entries, params, total)
}

func (s *Service) handleEnvUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	info, err := s.env.SizeInfo(ctx, world, "")
	recordStorage(storage.NamespaceEnv, "usage", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to get storage usage")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UsageResponse{
		UsedBytes:         info.TotalSize,
		MaxTotalSizeBytes: s.validator.Limits(storage.NamespaceEnv).MaxTotalSizeBytes,
	})
}

// decodeEnvValue reads {"value": "..."}; env values must be JSON strings.
func (s *Service) decodeEnvValue(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req ValueRequest
	if !httputil.DecodeJSONLimit(w, r, &req, s.maxBody) {
		return "", false
	}
	raw := bytes.TrimSpace(req.Value)
	if len(raw) == 0 {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest("Value is required"))
		return "", false
	}

	var plaintext string
	if raw[0] != '"' || json.Unmarshal(raw, &plaintext) != nil {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest("Value must be a string"))
		return "", false
	}
	return plaintext, true
}

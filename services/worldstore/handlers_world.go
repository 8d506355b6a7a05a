package worldstore

import (
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

const msgValueNotFound = "Value not found"

// =============================================================================
// World Handlers
// =============================================================================

func (s *Service) handleGetWorldValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	item, err := s.world.GetValue(ctx, world, key)
	recordStorage(storage.NamespaceWorld, "get", err)
	if errors.Is(err, storage.ErrNotFound) {
		httputil.NotFound(w, msgValueNotFound)
		return
	}
	if err != nil {
		s.respondError(w, r, err, "Failed to get value")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, ValueResponse{Value: item.Value})
}

func (s *Service) handleSetWorldValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}

	err := s.validator.ValidateUpsert(ctx, storage.NamespaceWorld, string(value), func(ctx context.Context) (storage.SizeInfo, error) {
		return s.world.SizeInfo(ctx, world, key)
	})
	if err != nil {
		s.respondError(w, r, err, "Failed to validate storage limits")
		return
	}

	item, err := s.world.SetValue(ctx, world, key, value)
	recordStorage(storage.NamespaceWorld, "set", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to store value")
		return
	}

	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"key":        key,
		"size_bytes": item.SizeBytes,
	}).Debug("World value stored")
	httputil.WriteJSON(w, http.StatusOK, ValueResponse{Value: item.Value})
}

func (s *Service) handleDeleteWorldValue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	err := s.world.DeleteValue(ctx, world, key)
	recordStorage(storage.NamespaceWorld, "delete", err)
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

func (s *Service) handleDeleteAllWorldValues(w http.ResponseWriter, r *http.Request) {
	if !requireConfirmation(w, r) {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	deleted, err := s.world.DeleteAll(ctx, world)
	recordStorage(storage.NamespaceWorld, "delete_all", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to delete values")
		return
	}

	s.Logger().LogSecurityEvent(ctx, "world_values_cleared", map[string]interface{}{"deleted": deleted})
	httputil.WriteJSON(w, http.StatusOK, DeleteAllResponse{Deleted: deleted})
}

func (s *Service) handleListWorldValues(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	params := pagination.ParseLenient(r.URL.Query(), s.pages)

	items, err := s.world.ListValues(ctx, world, listOptions(params))
	recordStorage(storage.NamespaceWorld, "list", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}
	total, err := s.world.CountValues(ctx, world, params.Prefix)
	recordStorage(storage.NamespaceWorld, "count", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}

	writePage(w, itemEntries(items), params, total)
}

func (s *Service) handleWorldUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	info, err := s.world.SizeInfo(ctx, world, "")
	recordStorage(storage.NamespaceWorld, "usage", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to get storage usage")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UsageResponse{
		UsedBytes:         info.TotalSize,
		MaxTotalSizeBytes: s.validator.Limits(storage.NamespaceWorld).MaxTotalSizeBytes,
	})
}

// =============================================================================
// Shared
// =============================================================================

// decodeValue reads {"value": ...} and returns the value as canonical JSON.
func (s *Service) decodeValue(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	var req ValueRequest
	if !httputil.DecodeJSONLimit(w, r, &req, s.maxBody) {
		return nil, false
	}
	if len(req.Value) == 0 {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest("Value is required"))
		return nil, false
	}
	value, err := storage.CanonicalJSON(req.Value)
	if err != nil {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest("Invalid JSON value"))
		return nil, false
	}
	return value, true
}

func itemEntries(items []storage.Item) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, Entry{Key: item.Key, Value: item.Value})
	}
	return entries
}

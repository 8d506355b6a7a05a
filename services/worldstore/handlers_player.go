package worldstore

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	svcerrors "github.com/R3E-Network/worldstore/internal/errors"
	"github.com/R3E-Network/worldstore/internal/ethaddr"
	"github.com/R3E-Network/worldstore/internal/httputil"
	"github.com/R3E-Network/worldstore/internal/pagination"
	"github.com/R3E-Network/worldstore/internal/signedfetch"
	"github.com/R3E-Network/worldstore/internal/storage"
)

// =============================================================================
// Player Handlers
// =============================================================================

// playerAddress validates the {address} path variable and returns it lower-cased.
func playerAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := mux.Vars(r)["address"]
	if !ethaddr.IsValid(address) {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest("Invalid player address"))
		return "", false
	}
	return ethaddr.Normalize(address), true
}

func (s *Service) handleGetPlayerValue(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	item, err := s.players.GetValue(ctx, world, player, key)
	recordStorage(storage.NamespacePlayer, "get", err)
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

func (s *Service) handleSetPlayerValue(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	value, ok := s.decodeValue(w, r)
	if !ok {
		return
	}

	err := s.validator.ValidateUpsert(ctx, storage.NamespacePlayer, string(value), func(ctx context.Context) (storage.SizeInfo, error) {
		return s.players.SizeInfo(ctx, world, player, key)
	})
	if err != nil {
		s.respondError(w, r, err, "Failed to validate storage limits")
		return
	}

	item, err := s.players.SetValue(ctx, world, player, key, value)
	recordStorage(storage.NamespacePlayer, "set", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to store value")
		return
	}

	s.Logger().WithContext(ctx).WithFields(map[string]interface{}{
		"player":     player,
		"key":        key,
		"size_bytes": item.SizeBytes,
	}).Debug("Player value stored")
	httputil.WriteJSON(w, http.StatusOK, ValueResponse{Value: item.Value})
}

func (s *Service) handleDeletePlayerValue(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	key := mux.Vars(r)["key"]

	err := s.players.DeleteValue(ctx, world, player, key)
	recordStorage(storage.NamespacePlayer, "delete", err)
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

func (s *Service) handleDeleteAllPlayerValues(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	if !requireConfirmation(w, r) {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	deleted, err := s.players.DeleteAllForPlayer(ctx, world, player)
	recordStorage(storage.NamespacePlayer, "delete_all", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to delete values")
		return
	}

	s.Logger().LogSecurityEvent(ctx, "player_values_cleared", map[string]interface{}{
		"player":  player,
		"deleted": deleted,
	})
	httputil.WriteJSON(w, http.StatusOK, DeleteAllResponse{Deleted: deleted})
}

// handleListPlayerValues is the only listing that rejects malformed
// pagination parameters instead of falling back to defaults.
func (s *Service) handleListPlayerValues(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	params, err := pagination.ParseStrict(r.URL.Query(), s.pages)
	if err != nil {
		httputil.WriteServiceError(w, svcerrors.InvalidRequest(err.Error()))
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	items, err := s.players.ListValues(ctx, world, player, listOptions(params))
	recordStorage(storage.NamespacePlayer, "list", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}
	total, err := s.players.CountValues(ctx, world, player, params.Prefix)
	recordStorage(storage.NamespacePlayer, "count", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list values")
		return
	}

	writePage(w, itemEntries(items), params, total)
}

func (s *Service) handlePlayerUsage(w http.ResponseWriter, r *http.Request) {
	player, ok := playerAddress(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	info, err := s.players.SizeInfo(ctx, world, player, "")
	recordStorage(storage.NamespacePlayer, "usage", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to get storage usage")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, UsageResponse{
		UsedBytes:         info.TotalSize,
		MaxTotalSizeBytes: s.validator.Limits(storage.NamespacePlayer).MaxTotalSizeBytes,
	})
}

// =============================================================================
// Players Index
// =============================================================================

func (s *Service) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)
	params := pagination.ParseLenient(r.URL.Query(), s.pages)
	// Addresses are stored lower-cased, so a checksummed prefix must match too.
	params.Prefix = ethaddr.Normalize(params.Prefix)

	players, err := s.players.ListPlayers(ctx, world, listOptions(params))
	recordStorage(storage.NamespacePlayer, "list_players", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list players")
		return
	}
	total, err := s.players.CountPlayers(ctx, world, params.Prefix)
	recordStorage(storage.NamespacePlayer, "count_players", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to list players")
		return
	}

	if players == nil {
		players = []string{}
	}
	writePage(w, players, params, total)
}

func (s *Service) handleDeleteAllPlayers(w http.ResponseWriter, r *http.Request) {
	if !requireConfirmation(w, r) {
		return
	}
	ctx := r.Context()
	world := signedfetch.WorldFrom(ctx)

	deleted, err := s.players.DeleteAllPlayers(ctx, world)
	recordStorage(storage.NamespacePlayer, "delete_all_players", err)
	if err != nil {
		s.respondError(w, r, err, "Failed to delete player values")
		return
	}

	s.Logger().LogSecurityEvent(ctx, "all_player_values_cleared", map[string]interface{}{"deleted": deleted})
	httputil.WriteJSON(w, http.StatusOK, DeleteAllResponse{Deleted: deleted})
}

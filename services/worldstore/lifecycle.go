package worldstore

import "context"

// =============================================================================
// Lifecycle
// =============================================================================

// Start starts the background workers of the service.
func (s *Service) Start(ctx context.Context) error {
	return s.BaseService.Start(ctx)
}

// Stop signals background workers to exit.
func (s *Service) Stop() error {
	return s.BaseService.Stop()
}

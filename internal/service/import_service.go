package service

import (
	"context"
	"fmt"
	"time"

	"github.com/crmforge/groupposter/internal/config"
	"github.com/crmforge/groupposter/internal/models"
	"github.com/crmforge/groupposter/internal/repository"
	"github.com/crmforge/groupposter/pkg/logger"
)

// ImportService merges externally supplied group lists into the shared
// state. Imports are idempotent: re-running the same batch only produces
// skips.
type ImportService struct {
	groups *GroupStateService
	repo   repository.GroupStateRepository
	cfg    config.SchedulingConfig
	log    logger.Logger
}

func NewImportService(groups *GroupStateService, repo repository.GroupStateRepository, cfg config.SchedulingConfig, log logger.Logger) *ImportService {
	return &ImportService{
		groups: groups,
		repo:   repo,
		cfg:    cfg,
		log:    log,
	}
}

// ImportGroups classifies and applies each entry. A new group is created
// with a fresh ramp-up window, a known group gains the account if it is not
// yet assigned, and repeated groups within the batch are skipped after the
// first occurrence. Bad rows are reported, never fatal.
func (s *ImportService) ImportGroups(ctx context.Context, entries []models.ImportEntry, now time.Time) (*models.ImportResult, error) {
	result := &models.ImportResult{Details: []models.ImportDetail{}}
	seen := make(map[string]bool)

	for _, entry := range entries {
		detail := s.classify(ctx, entry, seen)

		if detail.Result == models.ImportAdded || detail.Result == models.ImportUpdated {
			if err := s.apply(ctx, entry, detail.Result, now); err != nil {
				detail.Result = models.ImportError
				detail.Reason = err.Error()
			}
		}

		switch detail.Result {
		case models.ImportAdded:
			result.Added++
		case models.ImportUpdated:
			result.Updated++
		case models.ImportSkipped:
			result.Skipped++
		case models.ImportError:
			result.Errors++
		}
		groupsImportedTotal.WithLabelValues(detail.Result).Inc()
		result.Details = append(result.Details, detail)
	}

	s.log.Info("Import finished: %d added, %d updated, %d skipped, %d errors",
		result.Added, result.Updated, result.Skipped, result.Errors)
	return result, nil
}

// PreviewImport runs the same classification without writing anything. At
// most the first 10 classifications are returned as a sample.
func (s *ImportService) PreviewImport(ctx context.Context, entries []models.ImportEntry) (*models.ImportPreview, error) {
	preview := &models.ImportPreview{SampleDetails: []models.ImportDetail{}}
	seen := make(map[string]bool)

	for _, entry := range entries {
		detail := s.classify(ctx, entry, seen)

		switch detail.Result {
		case models.ImportAdded:
			preview.WouldAdd++
		case models.ImportUpdated:
			preview.WouldUpdate++
		case models.ImportSkipped:
			preview.WouldSkip++
		case models.ImportError:
			preview.Errors++
		}
		if len(preview.SampleDetails) < 10 {
			preview.SampleDetails = append(preview.SampleDetails, detail)
		}
	}

	return preview, nil
}

func (s *ImportService) classify(ctx context.Context, entry models.ImportEntry, seen map[string]bool) models.ImportDetail {
	detail := models.ImportDetail{FBGroupID: entry.FBGroupID, AccountID: entry.AccountID}

	if entry.FBGroupID == "" || entry.AccountID == "" {
		detail.Result = models.ImportError
		detail.Reason = "fb_group_id and account_id are required"
		return detail
	}

	// One entry per group per batch; the first occurrence wins regardless
	// of account
	if seen[entry.FBGroupID] {
		detail.Result = models.ImportSkipped
		detail.Reason = "duplicate entry in batch"
		return detail
	}
	seen[entry.FBGroupID] = true

	state, err := s.repo.Get(ctx, entry.FBGroupID)
	if err != nil {
		if err == models.ErrGroupNotFound {
			detail.Result = models.ImportAdded
			return detail
		}
		detail.Result = models.ImportError
		detail.Reason = fmt.Sprintf("lookup failed: %v", err)
		return detail
	}

	if state.HasAccount(entry.AccountID) {
		detail.Result = models.ImportSkipped
		detail.Reason = "account already assigned"
		return detail
	}

	detail.Result = models.ImportUpdated
	return detail
}

func (s *ImportService) apply(ctx context.Context, entry models.ImportEntry, result string, now time.Time) error {
	if result == models.ImportAdded {
		state, err := s.groups.GetOrCreate(ctx, entry.FBGroupID, entry.Name, now)
		if err != nil {
			return err
		}
		// Lost creation race with another importer: fall through to the
		// account merge.
		if state.HasAccount(entry.AccountID) {
			return nil
		}
	}

	return s.repo.AddAssignedAccount(ctx, entry.FBGroupID, entry.AccountID)
}

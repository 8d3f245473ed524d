package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devicehub/devicehub/internal/domain"
	"github.com/devicehub/devicehub/internal/infra/logger"
	"github.com/devicehub/devicehub/internal/infra/metrics"
	"github.com/devicehub/devicehub/internal/ports"
)

const (
	defaultStoreTimeout    = 5 * time.Second
	defaultIPLookupTimeout = 3 * time.Second
)

// AuditLogServiceConfig bounds the external calls made by the service
type AuditLogServiceConfig struct {
	StoreTimeout    time.Duration
	IPLookupTimeout time.Duration
}

// AuditLogService records and reads admin audit entries. The remote table is
// preferred; when it is missing or failing the process-local fallback list is used.
// Record and Fetch never return errors.
type AuditLogService struct {
	repo     ports.AuditLogRepository
	checker  ports.ExistenceChecker
	fallback ports.FallbackStore
	resolver ports.IPResolver
	clock    ports.Clock
	logger   logger.Logger

	storeTimeout    time.Duration
	ipLookupTimeout time.Duration

	// serializes fallback read-modify-write within this process
	fallbackMu sync.Mutex
}

// NewAuditLogService creates a new audit log service. resolver may be nil.
func NewAuditLogService(
	repo ports.AuditLogRepository,
	checker ports.ExistenceChecker,
	fallback ports.FallbackStore,
	resolver ports.IPResolver,
	clock ports.Clock,
	log logger.Logger,
	config AuditLogServiceConfig,
) *AuditLogService {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaultStoreTimeout
	}
	if config.IPLookupTimeout <= 0 {
		config.IPLookupTimeout = defaultIPLookupTimeout
	}
	return &AuditLogService{
		repo:            repo,
		checker:         checker,
		fallback:        fallback,
		resolver:        resolver,
		clock:           clock,
		logger:          log.WithFields(map[string]interface{}{"component": "audit"}),
		storeTimeout:    config.StoreTimeout,
		ipLookupTimeout: config.IPLookupTimeout,
	}
}

// Record persists entry and reports where it landed
func (s *AuditLogService) Record(ctx context.Context, entry domain.AuditLogEntry) domain.RecordOutcome {
	if entry.Timestamp == "" {
		entry.Timestamp = domain.FormatTimestamp(s.clock.Now())
	} else {
		entry.Timestamp = domain.NormalizeTimestamp(entry.Timestamp)
	}
	if entry.IPAddress == "" && s.resolver != nil {
		entry.IPAddress = s.resolveIP(ctx)
	}

	fields := map[string]interface{}{"action": entry.Action, "performed_by": entry.PerformedBy}

	if !s.remoteAvailable(ctx) {
		if err := s.appendFallback(ctx, entry); err != nil {
			metrics.AuditWriteFailures.WithLabelValues(string(domain.StoreFallback)).Inc()
			s.logger.Error(ctx, "Failed to write audit entry to fallback store", err, fields)
			return domain.RecordOutcome{Store: domain.StoreNone, Err: err}
		}
		metrics.AuditWrites.WithLabelValues(string(domain.StoreFallback)).Inc()
		return domain.RecordOutcome{Store: domain.StoreFallback}
	}

	insertErr := s.insertRemote(ctx, entry)
	if insertErr == nil {
		metrics.AuditWrites.WithLabelValues(string(domain.StoreRemote)).Inc()
		return domain.RecordOutcome{Store: domain.StoreRemote}
	}

	metrics.AuditWriteFailures.WithLabelValues(string(domain.StoreRemote)).Inc()
	s.logger.Error(ctx, "Failed to insert audit entry, writing to fallback store", insertErr, fields)

	if err := s.appendFallback(ctx, entry); err != nil {
		metrics.AuditWriteFailures.WithLabelValues(string(domain.StoreFallback)).Inc()
		s.logger.Error(ctx, "Failed to write audit entry to fallback store", err, fields)
		return domain.RecordOutcome{Store: domain.StoreNone, Err: fmt.Errorf("remote: %v; fallback: %w", insertErr, err)}
	}
	metrics.AuditWrites.WithLabelValues(string(domain.StoreFallback)).Inc()
	return domain.RecordOutcome{Store: domain.StoreFallback, Err: insertErr}
}

// Fetch returns the [offset, offset+limit) window of entries matching filter, newest first
func (s *AuditLogService) Fetch(ctx context.Context, limit, offset int, filter domain.AuditLogFilter) domain.AuditLogPage {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}

	var page domain.AuditLogPage
	normalized, err := filter.Normalize()
	if err != nil {
		s.logger.Warn(ctx, "Rejected audit filter", map[string]interface{}{"error": err.Error()})
		page = emptyPage(err.Error())
	} else {
		page = s.fetch(ctx, limit, offset, normalized)
	}
	metrics.AuditReads.WithLabelValues(string(page.Source), string(page.Status)).Inc()
	return page
}

func (s *AuditLogService) fetch(ctx context.Context, limit, offset int, filter domain.AuditLogFilter) domain.AuditLogPage {
	if !s.remoteAvailable(ctx) {
		entries, err := s.loadFallback(ctx)
		if err != nil {
			s.logger.Error(ctx, "Failed to load fallback audit entries", err, nil)
			return emptyPage(err.Error())
		}
		entries = domain.FilterEntries(entries, filter)
		domain.SortNewestFirst(entries)
		return domain.AuditLogPage{
			Entries: domain.Paginate(entries, limit, offset),
			Status:  domain.ReadStatusOK,
			Source:  domain.StoreFallback,
		}
	}

	entries, err := s.listRemote(ctx, filter, limit, offset)
	if err == nil {
		return domain.AuditLogPage{Entries: entries, Status: domain.ReadStatusOK, Source: domain.StoreRemote}
	}

	s.logger.Error(ctx, "Failed to query audit entries, serving fallback store", err, map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})

	dump, loadErr := s.loadFallback(ctx)
	if loadErr != nil {
		s.logger.Error(ctx, "Failed to load fallback audit entries", loadErr, nil)
		return emptyPage(fmt.Sprintf("remote: %v; fallback: %v", err, loadErr))
	}
	domain.SortNewestFirst(dump)
	return domain.AuditLogPage{
		Entries: dump,
		Status:  domain.ReadStatusDegraded,
		Source:  domain.StoreFallback,
		Reason:  err.Error(),
	}
}

// ExportView returns up to limit entries matching filter and search for export
func (s *AuditLogService) ExportView(ctx context.Context, filter domain.AuditLogFilter, search string, limit int) domain.AuditLogPage {
	start := time.Now()
	page := s.Fetch(ctx, limit, 0, filter)
	page.Entries = domain.SearchEntries(page.Entries, search)
	logger.LogPerformance(ctx, s.logger, "audit_export_view", time.Since(start), map[string]interface{}{
		"source":  page.Source,
		"entries": len(page.Entries),
	})
	return page
}

// remoteAvailable runs the existence probe; unclassified failures count as available
func (s *AuditLogService) remoteAvailable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	exists, err := s.checker.TableExists(probeCtx)
	switch {
	case err != nil:
		metrics.AuditProbes.WithLabelValues("error").Inc()
		s.logger.Warn(ctx, "Audit table probe failed, assuming it exists", map[string]interface{}{"error": err.Error()})
	case exists:
		metrics.AuditProbes.WithLabelValues("exists").Inc()
	default:
		metrics.AuditProbes.WithLabelValues("missing").Inc()
		s.logger.Debug(ctx, "Audit table missing, using fallback store", nil)
	}
	return exists
}

func (s *AuditLogService) insertRemote(ctx context.Context, entry domain.AuditLogEntry) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.Insert(ctx, entry)
}

func (s *AuditLogService) listRemote(ctx context.Context, filter domain.AuditLogFilter, limit, offset int) ([]domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.repo.List(ctx, filter, limit, offset)
}

func (s *AuditLogService) loadFallback(ctx context.Context) ([]domain.AuditLogEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.fallback.Load(ctx)
}

func (s *AuditLogService) appendFallback(ctx context.Context, entry domain.AuditLogEntry) error {
	s.fallbackMu.Lock()
	defer s.fallbackMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	entries, err := s.fallback.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load fallback store: %w", err)
	}
	if err := s.fallback.Save(ctx, append(entries, entry)); err != nil {
		return fmt.Errorf("failed to save fallback store: %w", err)
	}
	return nil
}

func (s *AuditLogService) resolveIP(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, s.ipLookupTimeout)
	defer cancel()

	ip, err := s.resolver.PublicIP(ctx)
	if err != nil || ip == "" {
		s.logger.Debug(ctx, "Public IP lookup failed", map[string]interface{}{"error": fmt.Sprint(err)})
		return domain.UnknownIPAddress
	}
	return ip
}

func emptyPage(reason string) domain.AuditLogPage {
	return domain.AuditLogPage{
		Entries: []domain.AuditLogEntry{},
		Status:  domain.ReadStatusEmpty,
		Source:  domain.StoreNone,
		Reason:  reason,
	}
}

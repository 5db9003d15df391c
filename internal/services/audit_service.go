package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pisoheroes/internal/core"
)

const (
	defaultAuditDays = 30
	maxAuditDays     = 365
	auditPageSize    = 100
	auditExportLimit = 10000
)

type AuditReader interface {
	ListAudit(ctx context.Context, f core.AuditFilter) ([]core.AuditEntry, error)
	CountAuditByAction(ctx context.Context, f core.AuditFilter) (map[core.AuditAction]int64, error)
}

// AuditQuery is the parsed filter form of the audit page.
type AuditQuery struct {
	Action   core.AuditAction
	Resource core.AuditResource
	Days     int
	Search   string
}

// ParseAuditQuery reads the page's query values. Unknown actions and
// resources are ignored; days defaults to 30 and is clamped to 1..365.
func ParseAuditQuery(action, resource, days, search string) AuditQuery {
	q := AuditQuery{Days: defaultAuditDays, Search: strings.TrimSpace(search)}
	if a := core.AuditAction(strings.ToUpper(strings.TrimSpace(action))); a.Valid() {
		q.Action = a
	}
	if r := core.AuditResource(strings.ToLower(strings.TrimSpace(resource))); r.Valid() {
		q.Resource = r
	}
	if n, err := strconv.Atoi(strings.TrimSpace(days)); err == nil {
		q.Days = min(max(n, 1), maxAuditDays)
	}
	if len(q.Search) > 100 {
		q.Search = q.Search[:100]
	}
	return q
}

// AuditView is one page of a user's audit trail.
type AuditView struct {
	Query   AuditQuery
	Entries []core.AuditEntry
	Counts  map[core.AuditAction]int64
	Total   int64
}

// AuditService reads the audit trail. Every query is scoped to one user.
type AuditService struct {
	store AuditReader
	now   func() time.Time
}

func NewAuditService(store AuditReader) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) filter(userID int64, q AuditQuery, limit int) core.AuditFilter {
	return core.AuditFilter{
		UserID:   userID,
		Action:   q.Action,
		Resource: q.Resource,
		Since:    s.now().Add(-time.Duration(q.Days) * 24 * time.Hour),
		Search:   q.Search,
		Limit:    limit,
	}
}

// View returns the newest matching entries and per-action counts.
func (s *AuditService) View(ctx context.Context, userID int64, q AuditQuery) (AuditView, error) {
	f := s.filter(userID, q, auditPageSize)
	entries, err := s.store.ListAudit(ctx, f)
	if err != nil {
		return AuditView{}, err
	}
	counts, err := s.store.CountAuditByAction(ctx, f)
	if err != nil {
		return AuditView{}, err
	}
	var total int64
	for _, n := range counts {
		total += n
	}
	return AuditView{Query: q, Entries: entries, Counts: counts, Total: total}, nil
}

// Export returns every matching entry up to the export cap, newest first.
func (s *AuditService) Export(ctx context.Context, userID int64, q AuditQuery) ([]core.AuditEntry, error) {
	entries, err := s.store.ListAudit(ctx, s.filter(userID, q, auditExportLimit))
	if err != nil {
		return nil, fmt.Errorf("export audit logs: %w", err)
	}
	return entries, nil
}

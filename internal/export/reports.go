package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/phishguard/internal/analytics"
	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/funnel"
	"github.com/ignite/phishguard/internal/pkg/logger"
)

// CampaignReport is the JSON document flushed to object storage for each
// campaign: the funnel stats plus per-department breakdown at flush
// time. Reports are point-in-time snapshots; the event log remains the
// source of truth.
type CampaignReport struct {
	CampaignID  string                     `json:"campaign_id"`
	Name        string                     `json:"name"`
	Status      string                     `json:"status"`
	GeneratedAt time.Time                  `json:"generated_at"`
	Stats       analytics.CampaignStats    `json:"stats"`
	Departments []analytics.DepartmentStats `json:"departments,omitempty"`
}

// ReportFlusher periodically writes campaign reports to S3.
type ReportFlusher struct {
	s3Client *s3.Client
	bucket   string

	store     *campaign.Store
	tracker   *funnel.Tracker
	deptOf    func(ctx context.Context) (map[string]string, error)
	interval  time.Duration
	stopCh    chan struct{}

	log *logger.Logger
}

// NewReportFlusher creates a flusher. deptOf supplies the directory
// mapping for the per-department breakdown; a nil func skips it.
func NewReportFlusher(s3Client *s3.Client, bucket string, store *campaign.Store, tracker *funnel.Tracker,
	deptOf func(ctx context.Context) (map[string]string, error), interval time.Duration) *ReportFlusher {
	return &ReportFlusher{
		s3Client: s3Client,
		bucket:   bucket,
		store:    store,
		tracker:  tracker,
		deptOf:   deptOf,
		interval: interval,
		stopCh:   make(chan struct{}),
		log:      logger.Component("report-flusher"),
	}
}

// Start begins the periodic flush loop.
func (f *ReportFlusher) Start() {
	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
				f.FlushAll(context.Background())
			}
		}
	}()
}

// Stop terminates the flush loop.
func (f *ReportFlusher) Stop() {
	close(f.stopCh)
}

// FlushAll writes a report for every non-draft campaign.
func (f *ReportFlusher) FlushAll(ctx context.Context) {
	campaigns, err := f.store.List(ctx, 0)
	if err != nil {
		f.log.Error("list campaigns", "error", err)
		return
	}
	for _, c := range campaigns {
		if c.Status == campaign.StatusDraft {
			continue
		}
		if err := f.Flush(ctx, c); err != nil {
			f.log.Error("flush report", "campaign_id", c.ID.String(), "error", err)
		}
	}
}

// Flush writes one campaign's report: a timestamped key for history and
// a latest key for dashboards.
func (f *ReportFlusher) Flush(ctx context.Context, c *campaign.Campaign) error {
	if f.s3Client == nil {
		return nil
	}

	records := f.tracker.CampaignRecords(c.ID.String())
	report := CampaignReport{
		CampaignID:  c.ID.String(),
		Name:        c.Name,
		Status:      c.Status,
		GeneratedAt: time.Now().UTC(),
		Stats:       analytics.ComputeCampaignStats(c.ID.String(), records),
	}
	if f.deptOf != nil {
		if depts, err := f.deptOf(ctx); err == nil {
			report.Departments = analytics.ComputeDepartmentStats(c.ID.String(), records, depts)
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}

	key := fmt.Sprintf("reports/%s/report_%s.json", report.CampaignID, report.GeneratedAt.Format("2006-01-02T15-04-05"))
	if err := f.put(ctx, key, data); err != nil {
		return err
	}
	if err := f.put(ctx, fmt.Sprintf("reports/%s/latest.json", report.CampaignID), data); err != nil {
		f.log.Warn("write latest report", "error", err)
	}

	f.log.Debug("report flushed", "campaign_id", report.CampaignID, "key", key)
	return nil
}

func (f *ReportFlusher) put(ctx context.Context, key string, data []byte) error {
	_, err := f.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(f.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

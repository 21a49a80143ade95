package insight

import (
	"context"
	"strconv"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// fakeSubscriptionRepo is an in-memory stand-in for SubscriptionRepository,
// enough to exercise the analyzers' List call.
type fakeSubscriptionRepo struct {
	subs []*models.Subscription
}

func (f *fakeSubscriptionRepo) Upsert(context.Context, *models.Subscription, int64) (*models.Subscription, error) {
	return nil, nil
}
func (f *fakeSubscriptionRepo) GetByID(_ context.Context, id int64) (*models.Subscription, error) {
	for _, s := range f.subs {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, errs.NotFoundf("subscription %d not found", id)
}
func (f *fakeSubscriptionRepo) List(_ context.Context, includeExcluded bool) ([]*models.Subscription, error) {
	var out []*models.Subscription
	for _, s := range f.subs {
		if !includeExcluded && s.Status == models.SubscriptionStatusExcluded {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
func (f *fakeSubscriptionRepo) UpdateStatus(context.Context, int64, models.SubscriptionStatus) error {
	return nil
}
func (f *fakeSubscriptionRepo) Acknowledge(context.Context, int64) error { return nil }
func (f *fakeSubscriptionRepo) Reactivate(context.Context, int64) error { return nil }
func (f *fakeSubscriptionRepo) Cancel(context.Context, int64) error     { return nil }
func (f *fakeSubscriptionRepo) Resume(context.Context, int64, float64, time.Time) error {
	return nil
}
func (f *fakeSubscriptionRepo) Exclude(context.Context, int64) error   { return nil }
func (f *fakeSubscriptionRepo) Unexclude(context.Context, int64) error { return nil }
func (f *fakeSubscriptionRepo) Delete(context.Context, int64) error    { return nil }
func (f *fakeSubscriptionRepo) TransactionIDs(context.Context, int64) ([]int64, error) {
	return nil, nil
}

// fakeTagRepo is an in-memory stand-in for TagRepository.
type fakeTagRepo struct {
	tags []*models.Tag
}

func (f *fakeTagRepo) Create(context.Context, *models.Tag) error { return nil }
func (f *fakeTagRepo) GetByID(_ context.Context, id int64) (*models.Tag, error) {
	for _, t := range f.tags {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, errs.NotFoundf("tag %d not found", id)
}
func (f *fakeTagRepo) GetByName(context.Context, string, *int64) (*models.Tag, error) { return nil, nil }
func (f *fakeTagRepo) List(context.Context) ([]*models.Tag, error)                     { return f.tags, nil }
func (f *fakeTagRepo) Descendants(context.Context, int64) ([]*models.Tag, error)       { return nil, nil }
func (f *fakeTagRepo) Delete(context.Context, int64) error                             { return nil }

// fakeReportRepo is an in-memory stand-in for ReportRepository; totals is
// keyed by "monthStart:tagID" (monthStart formatted "2006-01-02") for the caller to
// script per-window values.
type fakeReportRepo struct {
	totals map[string]float64
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{totals: map[string]float64{}}
}

func reportKey(tagID int64, monthStart time.Time) string {
	return monthStart.Format("2006-01-02") + ":" + strconv.FormatInt(tagID, 10)
}

func (f *fakeReportRepo) set(tagID int64, monthStart time.Time, total float64) {
	f.totals[reportKey(tagID, monthStart)] = total
}

func (f *fakeReportRepo) SpendingByTagInRange(context.Context, time.Time, time.Time) ([]repository.SpendingByTag, error) {
	return nil, nil
}
func (f *fakeReportRepo) TopMerchants(context.Context, time.Time, time.Time, int) ([]repository.MerchantTotal, error) {
	return nil, nil
}
func (f *fakeReportRepo) MonthlyTotalForTag(_ context.Context, tagID int64, monthStart, _ time.Time) (float64, error) {
	return f.totals[reportKey(tagID, monthStart)], nil
}

// fakeInsightFindingRepo is an in-memory stand-in for InsightFindingRepository.
type fakeInsightFindingRepo struct {
	byKey   map[string]*models.InsightFinding
	nextID  int64
	deleted int
}

func newFakeInsightFindingRepo() *fakeInsightFindingRepo {
	return &fakeInsightFindingRepo{byKey: map[string]*models.InsightFinding{}}
}

func findingKey(insightType, key string) string { return insightType + "|" + key }

func (f *fakeInsightFindingRepo) Upsert(_ context.Context, finding *models.InsightFinding) error {
	k := findingKey(finding.InsightType, finding.Key)
	if existing, ok := f.byKey[k]; ok {
		finding.ID = existing.ID
	} else {
		f.nextID++
		finding.ID = f.nextID
	}
	f.byKey[k] = finding
	return nil
}
func (f *fakeInsightFindingRepo) List(context.Context, bool) ([]*models.InsightFinding, error) {
	var out []*models.InsightFinding
	for _, v := range f.byKey {
		out = append(out, v)
	}
	return out, nil
}
func (f *fakeInsightFindingRepo) GetByKey(_ context.Context, insightType, key string) (*models.InsightFinding, error) {
	v, ok := f.byKey[findingKey(insightType, key)]
	if !ok {
		return nil, errs.NotFoundf("insight finding %s/%s not found", insightType, key)
	}
	return v, nil
}
func (f *fakeInsightFindingRepo) DeleteExpired(context.Context, time.Time) (int, error) {
	f.deleted++
	return 0, nil
}

func newTestEngine(subs []*models.Subscription, tags []*models.Tag, reports *fakeReportRepo, findings *fakeInsightFindingRepo) *Engine {
	if reports == nil {
		reports = newFakeReportRepo()
	}
	if findings == nil {
		findings = newFakeInsightFindingRepo()
	}
	repos := &repository.Repositories{
		Subscription:   &fakeSubscriptionRepo{subs: subs},
		Tag:            &fakeTagRepo{tags: tags},
		Report:         reports,
		InsightFinding: findings,
	}
	return New(repos, nil, nil)
}

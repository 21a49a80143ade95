package wastedetect

import (
	"context"
	"time"

	"github.com/jmylchreest/hone/internal/errs"
	"github.com/jmylchreest/hone/internal/models"
	"github.com/jmylchreest/hone/internal/repository"
)

// fakeTransactionRepo is an in-memory stand-in for TransactionRepository,
// enough to exercise the detector's listing and lookup paths without a
// database.
type fakeTransactionRepo struct {
	txs map[int64]*models.Transaction
}

func newFakeTransactionRepo(txs ...*models.Transaction) *fakeTransactionRepo {
	m := map[int64]*models.Transaction{}
	for _, tx := range txs {
		m[tx.ID] = tx
	}
	return &fakeTransactionRepo{txs: m}
}

func (f *fakeTransactionRepo) Create(context.Context, *models.Transaction) error { return nil }
func (f *fakeTransactionRepo) CreateBatch(context.Context, []*models.Transaction) (int, int, error) {
	return 0, 0, nil
}
func (f *fakeTransactionRepo) GetByID(_ context.Context, id int64) (*models.Transaction, error) {
	tx, ok := f.txs[id]
	if !ok {
		return nil, errs.NotFoundf("transaction %d not found", id)
	}
	return tx, nil
}
func (f *fakeTransactionRepo) GetByImportHash(context.Context, int64, string) (*models.Transaction, error) {
	return nil, nil
}
func (f *fakeTransactionRepo) List(_ context.Context, filter repository.TransactionFilter) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, tx := range f.txs {
		if filter.From != nil && tx.Date.Before(*filter.From) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
func (f *fakeTransactionRepo) Update(context.Context, *models.Transaction) error { return nil }
func (f *fakeTransactionRepo) SetExcluded(context.Context, int64, bool) error    { return nil }
func (f *fakeTransactionRepo) CountUntagged(context.Context) (int, error)        { return 0, nil }
func (f *fakeTransactionRepo) Count(context.Context) (int, error)                { return len(f.txs), nil }

// fakeSubscriptionRepo is an in-memory stand-in for SubscriptionRepository.
type fakeSubscriptionRepo struct {
	subs          map[int64]*models.Subscription
	nextID        int64
	transactionsOf map[int64][]int64
	resumed       []resumeCall
}

type resumeCall struct {
	id     int64
	amount float64
	seenAt time.Time
}

func newFakeSubscriptionRepo(subs ...*models.Subscription) *fakeSubscriptionRepo {
	m := map[int64]*models.Subscription{}
	var maxID int64
	for _, s := range subs {
		m[s.ID] = s
		if s.ID > maxID {
			maxID = s.ID
		}
	}
	return &fakeSubscriptionRepo{subs: m, nextID: maxID + 1, transactionsOf: map[int64][]int64{}}
}

func (f *fakeSubscriptionRepo) linkTransactions(subID int64, txIDs ...int64) {
	f.transactionsOf[subID] = append(f.transactionsOf[subID], txIDs...)
}

func (f *fakeSubscriptionRepo) Upsert(_ context.Context, s *models.Subscription, transactionID int64) (*models.Subscription, error) {
	for _, existing := range f.subs {
		sameAccount := (existing.AccountID == nil) == (s.AccountID == nil)
		if sameAccount && existing.AccountID != nil && s.AccountID != nil {
			sameAccount = *existing.AccountID == *s.AccountID
		}
		if existing.Merchant == s.Merchant && sameAccount {
			existing.LastSeen = s.LastSeen
			f.linkTransactions(existing.ID, transactionID)
			return existing, nil
		}
	}
	s.ID = f.nextID
	f.nextID++
	if s.Status == "" {
		s.Status = models.SubscriptionStatusActive
	}
	f.subs[s.ID] = s
	f.linkTransactions(s.ID, transactionID)
	return s, nil
}
func (f *fakeSubscriptionRepo) GetByID(_ context.Context, id int64) (*models.Subscription, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, errs.NotFoundf("subscription %d not found", id)
	}
	return s, nil
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
func (f *fakeSubscriptionRepo) UpdateStatus(_ context.Context, id int64, status models.SubscriptionStatus) error {
	s, ok := f.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %d not found", id)
	}
	s.Status = status
	return nil
}
func (f *fakeSubscriptionRepo) Acknowledge(_ context.Context, id int64) error {
	s, ok := f.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %d not found", id)
	}
	now := time.Now()
	s.UserAcknowledged = true
	s.AcknowledgedAt = &now
	return nil
}
func (f *fakeSubscriptionRepo) Reactivate(_ context.Context, id int64) error {
	s, ok := f.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %d not found", id)
	}
	s.Status = models.SubscriptionStatusActive
	s.CancelledAt = nil
	s.CancelledMonthlyAmount = nil
	return nil
}
func (f *fakeSubscriptionRepo) Cancel(_ context.Context, id int64) error {
	s, ok := f.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %d not found", id)
	}
	now := time.Now()
	monthly := s.MonthlyEquivalent()
	s.Status = models.SubscriptionStatusCancelled
	s.CancelledAt = &now
	s.CancelledMonthlyAmount = &monthly
	return nil
}
func (f *fakeSubscriptionRepo) Resume(_ context.Context, id int64, amount float64, seenAt time.Time) error {
	s, ok := f.subs[id]
	if !ok {
		return errs.NotFoundf("subscription %d not found", id)
	}
	f.resumed = append(f.resumed, resumeCall{id: id, amount: amount, seenAt: seenAt})
	s.Status = models.SubscriptionStatusActive
	s.Amount = amount
	s.LastSeen = seenAt
	s.UserAcknowledged = true
	return nil
}
func (f *fakeSubscriptionRepo) Exclude(ctx context.Context, id int64) error {
	return f.UpdateStatus(ctx, id, models.SubscriptionStatusExcluded)
}
func (f *fakeSubscriptionRepo) Unexclude(ctx context.Context, id int64) error {
	return f.UpdateStatus(ctx, id, models.SubscriptionStatusActive)
}
func (f *fakeSubscriptionRepo) Delete(_ context.Context, id int64) error {
	delete(f.subs, id)
	return nil
}
func (f *fakeSubscriptionRepo) TransactionIDs(_ context.Context, subscriptionID int64) ([]int64, error) {
	return f.transactionsOf[subscriptionID], nil
}

// fakeAlertRepo is an in-memory stand-in for AlertRepository, deduping on
// (type, subscription_id) the way the real repository does.
type fakeAlertRepo struct {
	alerts []*models.Alert
	nextID int64
}

func (f *fakeAlertRepo) CreateAlert(_ context.Context, a *models.Alert) (int64, error) {
	if a.SubscriptionID != nil {
		for _, existing := range f.alerts {
			if existing.Type == a.Type && existing.SubscriptionID != nil && *existing.SubscriptionID == *a.SubscriptionID && !existing.Dismissed {
				return existing.ID, nil
			}
		}
	}
	f.nextID++
	a.ID = f.nextID
	f.alerts = append(f.alerts, a)
	return a.ID, nil
}
func (f *fakeAlertRepo) CreateSpendingAnomalyAlert(context.Context, models.SpendingAnomalyData, string) (int64, error) {
	return 0, nil
}
func (f *fakeAlertRepo) GetAlert(_ context.Context, id int64) (*models.Alert, error) {
	for _, a := range f.alerts {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, errs.NotFoundf("alert %d not found", id)
}
func (f *fakeAlertRepo) ListAlerts(context.Context, bool) ([]*models.Alert, error) { return f.alerts, nil }
func (f *fakeAlertRepo) CountActive(context.Context) (int, error)                  { return len(f.alerts), nil }
func (f *fakeAlertRepo) Dismiss(context.Context, int64) error                      { return nil }
func (f *fakeAlertRepo) Restore(context.Context, int64) error                      { return nil }
func (f *fakeAlertRepo) GetDashboardStats(context.Context) (*models.DashboardStats, error) {
	return &models.DashboardStats{}, nil
}

// fakeTagRepo is an in-memory stand-in for TagRepository.
type fakeTagRepo struct {
	tags map[int64]*models.Tag
}

func newFakeTagRepo(tags ...*models.Tag) *fakeTagRepo {
	m := map[int64]*models.Tag{}
	for _, t := range tags {
		m[t.ID] = t
	}
	return &fakeTagRepo{tags: m}
}

func (f *fakeTagRepo) Create(context.Context, *models.Tag) error { return nil }
func (f *fakeTagRepo) GetByID(_ context.Context, id int64) (*models.Tag, error) {
	t, ok := f.tags[id]
	if !ok {
		return nil, errs.NotFoundf("tag %d not found", id)
	}
	return t, nil
}
func (f *fakeTagRepo) GetByName(context.Context, string, *int64) (*models.Tag, error) { return nil, nil }
func (f *fakeTagRepo) List(context.Context) ([]*models.Tag, error) {
	var out []*models.Tag
	for _, t := range f.tags {
		out = append(out, t)
	}
	return out, nil
}
func (f *fakeTagRepo) Descendants(context.Context, int64) ([]*models.Tag, error) { return nil, nil }
func (f *fakeTagRepo) Delete(context.Context, int64) error                       { return nil }

// fakeTransactionTagRepo is an in-memory stand-in for TransactionTagRepository.
type fakeTransactionTagRepo struct {
	byTransaction map[int64][]*models.TransactionTag
}

func newFakeTransactionTagRepo() *fakeTransactionTagRepo {
	return &fakeTransactionTagRepo{byTransaction: map[int64][]*models.TransactionTag{}}
}

func (f *fakeTransactionTagRepo) assign(transactionID, tagID int64) {
	f.byTransaction[transactionID] = append(f.byTransaction[transactionID], &models.TransactionTag{TransactionID: transactionID, TagID: tagID})
}

func (f *fakeTransactionTagRepo) Assign(_ context.Context, tt *models.TransactionTag) error {
	f.assign(tt.TransactionID, tt.TagID)
	return nil
}
func (f *fakeTransactionTagRepo) ListByTransaction(_ context.Context, transactionID int64) ([]*models.TransactionTag, error) {
	return f.byTransaction[transactionID], nil
}
func (f *fakeTransactionTagRepo) Unassign(context.Context, int64, int64) error { return nil }

// newTestDetector builds a Detector over fake repositories, filling in any
// unset fields with empty fakes so passes the test doesn't exercise don't
// panic on a nil interface.
func newTestDetector(cfg Config, txRepo *fakeTransactionRepo, subRepo *fakeSubscriptionRepo, alertRepo *fakeAlertRepo, tagRepo *fakeTagRepo, ttRepo *fakeTransactionTagRepo) *Detector {
	if txRepo == nil {
		txRepo = newFakeTransactionRepo()
	}
	if subRepo == nil {
		subRepo = newFakeSubscriptionRepo()
	}
	if alertRepo == nil {
		alertRepo = &fakeAlertRepo{}
	}
	if tagRepo == nil {
		tagRepo = newFakeTagRepo()
	}
	if ttRepo == nil {
		ttRepo = newFakeTransactionTagRepo()
	}
	repos := &repository.Repositories{
		Transaction:    txRepo,
		Subscription:   subRepo,
		Alert:          alertRepo,
		Tag:            tagRepo,
		TransactionTag: ttRepo,
	}
	return New(repos, nil, cfg, nil)
}

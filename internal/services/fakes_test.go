package service

import (
	"context"
	"sync"
	"time"

	"github.com/ezbirr/p2p-exchange/internal/infrastructure/redis"
	"github.com/ezbirr/p2p-exchange/internal/models"
	"github.com/ezbirr/p2p-exchange/internal/repository"
	pkgerrors "github.com/ezbirr/p2p-exchange/pkg/errors"
)

// In-memory fakes backing the service tests. The deal store enforces
// trade-code uniqueness the same way the unique index does, so the
// re-roll path is exercised for real.

type fakeLogRepo struct {
	mu      sync.Mutex
	entries []models.LogEntry
}

func (f *fakeLogRepo) Append(_ context.Context, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = int64(len(f.entries) + 1)
	entry.Timestamp = time.Now().UTC()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeLogRepo) ListByDeal(_ context.Context, dealID int64) ([]models.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LogEntry
	for _, e := range f.entries {
		if e.DealID != nil && *e.DealID == dealID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLogRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int64]*models.User
	byTg   map[string]int64
	nextID int64
	logs   *fakeLogRepo
}

func newFakeUserRepo(logs *fakeLogRepo) *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*models.User{}, byTg: map[string]int64{}, logs: logs}
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.TelegramUsername != "" {
		if _, ok := f.byTg[user.TelegramUsername]; ok {
			return pkgerrors.ErrDuplicateIdentity
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	f.users[user.ID] = &cp
	if user.TelegramUsername != "" {
		f.byTg[user.TelegramUsername] = user.ID
	}
	entry.UserID = &user.ID
	return f.logs.Append(ctx, entry)
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

type fakeListingRepo struct {
	mu       sync.Mutex
	listings map[int64]*models.Listing
	nextID   int64
	logs     *fakeLogRepo
}

func newFakeListingRepo(logs *fakeLogRepo) *fakeListingRepo {
	return &fakeListingRepo{listings: map[int64]*models.Listing{}, logs: logs}
}

func (f *fakeListingRepo) Create(ctx context.Context, listing *models.Listing, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	listing.ID = f.nextID
	listing.Status = models.ListingActive
	listing.CreatedAt = time.Now().UTC()
	listing.UpdatedAt = listing.CreatedAt
	cp := *listing
	f.listings[listing.ID] = &cp
	return f.logs.Append(ctx, entry)
}

func (f *fakeListingRepo) GetByID(_ context.Context, id int64) (*models.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return nil, pkgerrors.ErrListingNotFound
	}
	cp := *listing
	return &cp, nil
}

func (f *fakeListingRepo) Update(ctx context.Context, id int64, upd *models.ListingUpdate, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing, ok := f.listings[id]
	if !ok {
		return pkgerrors.ErrListingNotFound
	}
	if upd.Amount != nil {
		listing.Amount = *upd.Amount
	}
	if upd.Rate != nil {
		listing.Rate = *upd.Rate
	}
	if upd.PaymentMethod != nil {
		listing.PaymentMethod = *upd.PaymentMethod
	}
	if upd.Contact != nil {
		listing.Contact = *upd.Contact
	}
	if upd.Status != nil {
		listing.Status = *upd.Status
	}
	if upd.MinAmount != nil {
		listing.MinAmount = upd.MinAmount
	}
	if upd.MaxAmount != nil {
		listing.MaxAmount = upd.MaxAmount
	}
	if upd.Description != nil {
		listing.Description = *upd.Description
	}
	listing.UpdatedAt = time.Now().UTC()
	return f.logs.Append(ctx, entry)
}

func (f *fakeListingRepo) List(_ context.Context, filter repository.ListingFilter) ([]models.Listing, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Listing
	for _, l := range f.listings {
		if l.Status != filter.Status {
			continue
		}
		if filter.Direction != "" && l.Direction != filter.Direction {
			continue
		}
		matched = append(matched, *l)
	}
	total := len(matched)
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

type fakeDealRepo struct {
	mu     sync.Mutex
	byCode map[string]*models.Deal
	byID   map[int64]*models.Deal
	nextID int64
	logs   *fakeLogRepo
}

func newFakeDealRepo(logs *fakeLogRepo) *fakeDealRepo {
	return &fakeDealRepo{byCode: map[string]*models.Deal{}, byID: map[int64]*models.Deal{}, logs: logs}
}

func (f *fakeDealRepo) Create(ctx context.Context, deal *models.Deal, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byCode[deal.TradeCode]; ok {
		return pkgerrors.ErrTradeCodeTaken
	}
	f.nextID++
	deal.ID = f.nextID
	deal.Status = models.DealPending
	deal.CreatedAt = time.Now().UTC()
	deal.UpdatedAt = deal.CreatedAt
	cp := *deal
	f.byCode[deal.TradeCode] = &cp
	f.byID[deal.ID] = &cp
	entry.DealID = &deal.ID
	return f.logs.Append(ctx, entry)
}

func (f *fakeDealRepo) GetByTradeCode(_ context.Context, tradeCode string) (*models.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.byCode[tradeCode]
	if !ok {
		return nil, pkgerrors.ErrDealNotFound
	}
	cp := *deal
	return &cp, nil
}

func (f *fakeDealRepo) UpdateStatus(ctx context.Context, dealID int64, from []models.DealStatus, to models.DealStatus, entry *models.LogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	deal, ok := f.byID[dealID]
	if !ok {
		return pkgerrors.ErrDealNotFound
	}
	allowed := false
	for _, s := range from {
		if deal.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return pkgerrors.ErrInvalidState
	}
	deal.Status = to
	deal.UpdatedAt = time.Now().UTC()
	return f.logs.Append(ctx, entry)
}

func (f *fakeDealRepo) ListByStatus(_ context.Context, status models.DealStatus, limit, offset int) ([]models.Deal, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []models.Deal
	for _, d := range f.byCode {
		if d.Status == status {
			matched = append(matched, *d)
		}
	}
	total := len(matched)
	if offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

type fakeRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	val, ok := f.values[key]
	if !ok {
		return "", redis.ErrKeyNotFound
	}
	return val, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := value.(string); ok {
		f.values[key] = s
	}
	return nil
}

func (f *fakeRedis) Del(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.values, key)
	return nil
}

func (f *fakeRedis) Close() error { return nil }

type fakeProducer struct {
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeProducer) Send(_ context.Context, _ string, _ string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, value)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

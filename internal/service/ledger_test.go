package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"team-visualizer/internal/core/cache"
	"team-visualizer/internal/core/database/dbtest"
	"team-visualizer/internal/domain"
	"team-visualizer/internal/repo"
)

type ledgerFixture struct {
	db    *gorm.DB
	users *repo.UserRepo
	hours *repo.HourRepo
	svc   *LedgerService
}

func newLedgerFixture(t *testing.T, opts ...LedgerOption) *ledgerFixture {
	t.Helper()
	db := dbtest.Open(t, repo.Models()...)
	f := &ledgerFixture{db: db, users: repo.NewUserRepo(db), hours: repo.NewHourRepo(db)}
	f.svc = NewLedgerService(db, f.users, f.hours, opts...)
	return f
}

func (f *ledgerFixture) seed(t *testing.T, id, email string) {
	t.Helper()
	require.NoError(t, f.users.Create(context.Background(), &domain.User{
		ID: id, Email: email, Name: strings.Split(email, "@")[0], PasswordHash: "x",
	}))
}

// 余额与账本之和
func (f *ledgerFixture) state(t *testing.T, id string) (decimal.Decimal, decimal.Decimal, int64) {
	t.Helper()
	u, err := f.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, u)
	sum, n, err := f.hours.Sum(context.Background(), id)
	require.NoError(t, err)
	return u.ServiceHours, sum, n
}

func h(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAdjust_BalanceEqualsLedgerSum(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()

	for _, a := range []string{"2", "1.5", "-0.25", "10"} {
		_, err := f.svc.Adjust(ctx, "ana@lab.mx", h(a), "")
		require.NoError(t, err)
	}
	res, err := f.svc.Adjust(ctx, "u1", h("-3"), "correction")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(h("10.25")), res.NewBalance.String())
	assert.NotEmpty(t, res.RecordID)

	balance, sum, n := f.state(t, "u1")
	assert.True(t, balance.Equal(h("10.25")), balance.String())
	assert.True(t, sum.Round(2).Equal(balance), sum.String())
	assert.EqualValues(t, 5, n)
}

func TestAdjust_RejectsInvalidAmounts(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	for _, a := range []string{"0", "0.001", "10000.01", "-20000"} {
		_, err := f.svc.Adjust(context.Background(), "u1", h(a), "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, a)
	}
	balance, _, n := f.state(t, "u1")
	assert.True(t, balance.IsZero())
	assert.Zero(t, n)
}

func TestAdjust_UnknownUser(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	for _, key := range []string{"ghost@lab.mx", "no-such-id", "   "} {
		_, err := f.svc.Adjust(context.Background(), key, h("1"), "")
		assert.ErrorIs(t, err, domain.ErrUserNotFound, key)
	}
	var n int64
	require.NoError(t, f.db.Model(&domain.HourRecord{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAdjust_EmailKeyIsNormalized(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	res, err := f.svc.Adjust(context.Background(), "  ANA@Lab.MX\t", h("4"), "")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(h("4")))

	hist, err := f.svc.History(context.Background(), " Ana@lab.mx ", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

type failingHours struct {
	domain.HourRepository
}

func (failingHours) Append(context.Context, *domain.HourRecord) error {
	return errors.New("disk full")
}

func (f failingHours) WithTx(tx *gorm.DB) domain.HourRepository {
	return failingHours{f.HourRepository.WithTx(tx)}
}

func TestAdjust_AppendFailureRollsBackBalance(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	svc := NewLedgerService(f.db, f.users, failingHours{f.hours})

	_, err := svc.Adjust(context.Background(), "u1", h("5"), "")
	require.ErrorIs(t, err, domain.ErrInternal)
	assert.NotErrorIs(t, err, domain.ErrUserNotFound)

	balance, _, n := f.state(t, "u1")
	assert.True(t, balance.IsZero(), balance.String())
	assert.Zero(t, n)
}

type failingBalance struct {
	domain.UserRepository
}

func (failingBalance) UpdateBalance(context.Context, string, decimal.Decimal) error {
	return errors.New("connection reset")
}

func (f failingBalance) WithTx(tx *gorm.DB) domain.UserRepository {
	return failingBalance{f.UserRepository.WithTx(tx)}
}

func TestAdjust_BalanceFailureWritesNothing(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	svc := NewLedgerService(f.db, failingBalance{f.users}, f.hours)

	_, err := svc.Adjust(context.Background(), "ana@lab.mx", h("5"), "")
	require.ErrorIs(t, err, domain.ErrInternal)

	balance, _, n := f.state(t, "u1")
	assert.True(t, balance.IsZero())
	assert.Zero(t, n)
}

func TestAdjust_InsertErrorInsideTransactionRollsBack(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	_, err := f.svc.Adjust(context.Background(), "u1", h("3"), "")
	require.NoError(t, err)

	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_hour_records", func(tx *gorm.DB) {
		if tx.Statement.Table == "hour_records" {
			_ = tx.AddError(errors.New("constraint violated"))
		}
	}))

	_, err = f.svc.Adjust(context.Background(), "u1", h("7"), "")
	require.ErrorIs(t, err, domain.ErrInternal)

	balance, sum, n := f.state(t, "u1")
	assert.True(t, balance.Equal(h("3")), balance.String())
	assert.True(t, sum.Equal(h("3")), sum.String())
	assert.EqualValues(t, 1, n)
}

func TestHistory_NewestFirstAndLimited(t *testing.T) {
	// 固定时钟，顺序只能靠 seq
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f := newLedgerFixture(t, WithClock(func() time.Time { return at }))
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()

	for _, a := range []int64{2, -1, 3, 1, -2, 4, 1} {
		_, err := f.svc.Adjust(ctx, "u1", decimal.NewFromInt(a), "")
		require.NoError(t, err)
	}

	hist, err := f.svc.History(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, hist, 5)
	got := make([]string, len(hist))
	for i, e := range hist {
		got[i] = e.Amount.String()
	}
	assert.Equal(t, []string{"1", "4", "-2", "1", "3"}, got)
	assert.Equal(t, "added 1 hour", hist[0].Note)
	assert.Equal(t, "removed 2 hours", hist[2].Note)

	balance, err := f.svc.Balance(ctx, "ana@lab.mx")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(8)), balance.String())
}

func TestHistory_LimitIsClamped(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		_, err := f.svc.Adjust(ctx, "u1", h("1"), "")
		require.NoError(t, err)
	}

	cases := map[int]int{100: 5, 5: 5, 3: 3, 1: 1, 0: 1, -4: 1}
	for limit, want := range cases {
		hist, err := f.svc.History(ctx, "u1", limit)
		require.NoError(t, err)
		assert.Len(t, hist, want, "limit=%d", limit)
	}
}

func TestHistory_EmptyAndUnknown(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	hist, err := f.svc.History(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.NotNil(t, hist)
	assert.Empty(t, hist)

	_, err = f.svc.History(context.Background(), "ghost@lab.mx", 5)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestAdjust_ConcurrentIncrementsAreSerialized(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Adjust(context.Background(), "ana@lab.mx", h("1"), "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, sum, n := f.state(t, "u1")
	assert.True(t, balance.Equal(decimal.NewFromInt(workers)), balance.String())
	assert.True(t, sum.Equal(decimal.NewFromInt(workers)), sum.String())
	assert.EqualValues(t, workers, n)

	// seq 连续无重复
	recs, err := f.hours.Recent(context.Background(), "u1", workers)
	require.NoError(t, err)
	for i, r := range recs {
		assert.EqualValues(t, workers-i, r.Seq)
	}
}

func TestAdjust_TimestampsNeverGoBackwards(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := []time.Time{t0, t0.Add(-time.Hour), t0.Add(time.Minute)}
	var i int
	f := newLedgerFixture(t, WithClock(func() time.Time {
		now := clock[i]
		i++
		return now
	}))
	f.seed(t, "u1", "ana@lab.mx")

	for range clock {
		_, err := f.svc.Adjust(context.Background(), "u1", h("1"), "")
		require.NoError(t, err)
	}
	recs, err := f.hours.Recent(context.Background(), "u1", 5)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.True(t, recs[0].CreatedAt.Equal(t0.Add(time.Minute)))
	assert.True(t, recs[1].CreatedAt.Equal(t0), recs[1].CreatedAt.String())
	assert.True(t, recs[2].CreatedAt.Equal(t0))
}

func TestAdjust_ReasonIsClipped(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")

	_, err := f.svc.Adjust(context.Background(), "u1", h("1"), "  "+strings.Repeat("ñ", 300)+"  ")
	require.NoError(t, err)

	last, err := f.hours.Last(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, maxReasonLen, utf8.RuneCountInString(last.Reason))
}

func TestRegisterHours_OnlyPositive(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()

	_, err := f.svc.RegisterHours(ctx, "u1", h("-2"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	res, err := f.svc.RegisterHours(ctx, "u1", h("2.5"), "lab cleanup")
	require.NoError(t, err)
	assert.True(t, res.NewBalance.Equal(h("2.5")))
}

func TestVerify_DetectsDrift(t *testing.T) {
	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()
	for _, a := range []string{"0.1", "0.2", "3"} {
		_, err := f.svc.Adjust(ctx, "u1", h(a), "")
		require.NoError(t, err)
	}

	r, err := f.svc.Verify(ctx, "ana@lab.mx")
	require.NoError(t, err)
	assert.True(t, r.Consistent)
	assert.EqualValues(t, 3, r.Records)
	assert.True(t, r.Balance.Equal(h("3.3")), r.Balance.String())

	// 绕过账本直接改余额
	require.NoError(t, f.users.UpdateBalance(ctx, "u1", h("5")))
	r, err = f.svc.Verify(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, r.Consistent)
	assert.True(t, r.Drift.Equal(h("1.7")), r.Drift.String())

	_, err = f.svc.Verify(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestHistory_CachedAndInvalidatedOnAdjust(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	f := newLedgerFixture(t, WithLedgerCache(c, time.Minute))
	f.seed(t, "u1", "ana@lab.mx")
	ctx := context.Background()

	_, err := f.svc.Adjust(ctx, "u1", h("1"), "")
	require.NoError(t, err)
	hist, err := f.svc.History(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.True(t, mr.Exists("tv:"+historyCacheKey("u1")))

	// 绕过服务写入，缓存里的 seq 落后，读时重新回源
	require.NoError(t, f.hours.Append(ctx, &domain.HourRecord{
		ID: "manual", UserID: "u1", Seq: 2, Amount: h("1"), CreatedAt: time.Now().UTC(),
	}))
	hist, err = f.svc.History(ctx, "u1", 5)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
	cached, err := mr.Get("tv:" + historyCacheKey("u1"))
	require.NoError(t, err)
	assert.Contains(t, cached, `"seq":2`)

	// 服务内调整会删除缓存
	_, err = f.svc.Adjust(ctx, "u1", h("2"), "")
	require.NoError(t, err)
	hist, err = f.svc.History(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, "2", hist[0].Amount.String())
}

// stallingHours 第一次 Recent 查完后停住，模拟回源与提交交错
type stallingHours struct {
	domain.HourRepository
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (s *stallingHours) Recent(ctx context.Context, userID string, limit int) ([]domain.HourRecord, error) {
	recs, err := s.HourRepository.Recent(ctx, userID, limit)
	s.once.Do(func() {
		close(s.loaded)
		<-s.release
	})
	return recs, err
}

func TestHistory_LoadRacingAdjustDoesNotStick(t *testing.T) {
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })

	f := newLedgerFixture(t)
	f.seed(t, "u1", "ana@lab.mx")
	hours := &stallingHours{HourRepository: f.hours, loaded: make(chan struct{}), release: make(chan struct{})}
	svc := NewLedgerService(f.db, f.users, hours, WithLedgerCache(c, time.Minute))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := svc.History(ctx, "u1", 5)
		done <- err
	}()

	select {
	case <-hours.loaded:
	case <-time.After(5 * time.Second):
		t.Fatal("history load never started")
	}
	// 回源已读到空列表；此时提交并删缓存，随后旧结果才写回
	_, err := svc.Adjust(ctx, "u1", h("3"), "")
	require.NoError(t, err)
	close(hours.release)
	require.NoError(t, <-done)

	hist, err := svc.History(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "3", hist[0].Amount.String())

	// 回填后的缓存也是新的
	hist, err = svc.History(ctx, "u1", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
}

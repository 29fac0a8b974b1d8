package promo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/fault"
)

type mockPromoRepo struct {
	codes   map[string]*Code
	created *Code
	lastNow time.Time
	findErr error
}

func newMockPromoRepo(codes ...Code) *mockPromoRepo {
	m := &mockPromoRepo{codes: make(map[string]*Code)}
	for i := range codes {
		m.codes[codes[i].Code] = &codes[i]
	}
	return m
}

func (m *mockPromoRepo) FindActive(_ context.Context, code string, now time.Time) (*Code, error) {
	m.lastNow = now
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.codes[code]
	if !ok || !c.Active || !now.Before(c.ExpiresAt) {
		return nil, ErrInvalid
	}
	cp := *c
	return &cp, nil
}

func (m *mockPromoRepo) GetByID(_ context.Context, id string) (*Code, error) {
	for _, c := range m.codes {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPromoRepo) List(_ context.Context) ([]Code, error) {
	out := make([]Code, 0, len(m.codes))
	for _, c := range m.codes {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockPromoRepo) Create(_ context.Context, c *Code) error {
	if _, ok := m.codes[c.Code]; ok {
		return ErrDuplicate
	}
	m.created = c
	m.codes[c.Code] = c
	return nil
}

func (m *mockPromoRepo) Delete(_ context.Context, id string) error {
	for k, c := range m.codes {
		if c.ID == id {
			delete(m.codes, k)
			return nil
		}
	}
	return ErrNotFound
}

func (m *mockPromoRepo) SetActive(_ context.Context, id string, active bool) (*Code, error) {
	for _, c := range m.codes {
		if c.ID == id {
			c.Active = active
			cp := *c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func intPtr(v int) *int { return &v }

func TestService_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	future := fixedNow.Add(24 * time.Hour)
	past := fixedNow.Add(-time.Second)

	repo := newMockPromoRepo(
		Code{ID: "1", Code: "SAVE20", Percent: 20, ExpiresAt: future, Active: true},
		Code{ID: "2", Code: "OLD", Percent: 10, ExpiresAt: past, Active: true},
		Code{ID: "3", Code: "OFF", Percent: 10, ExpiresAt: future, Active: false},
		Code{ID: "4", Code: "ONCE", Percent: 50, ExpiresAt: future, Active: true, MaxUses: intPtr(1), UsedCount: 1},
		Code{ID: "5", Code: "EDGE", Percent: 10, ExpiresAt: fixedNow, Active: true},
	)

	tests := []struct {
		name         string
		code         string
		total        string
		wantErr      error
		wantAmount   string
		wantNewTotal string
	}{
		{name: "valid code", code: "SAVE20", total: "1000", wantAmount: "200", wantNewTotal: "800"},
		{name: "lower case input", code: "  save20 ", total: "99.99", wantAmount: "20", wantNewTotal: "79.99"},
		{name: "unknown code", code: "NOPE", total: "100", wantErr: ErrInvalid},
		{name: "empty code", code: "", total: "100", wantErr: ErrInvalid},
		{name: "expired code", code: "OLD", total: "100", wantErr: ErrInvalid},
		{name: "expiry is exclusive", code: "EDGE", total: "100", wantErr: ErrInvalid},
		{name: "inactive code", code: "OFF", total: "100", wantErr: ErrInvalid},
		{name: "usage cap reached", code: "ONCE", total: "100", wantErr: ErrUsageLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(repo, time.Second)
			svc.now = func() time.Time { return fixedNow }

			p, err := svc.Validate(context.Background(), tt.code, decimal.RequireFromString(tt.total))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.wantAmount).Equal(p.DiscountAmount), "amount %s", p.DiscountAmount)
			assert.True(t, decimal.RequireFromString(tt.wantNewTotal).Equal(p.NewTotal), "new total %s", p.NewTotal)
			assert.Equal(t, "20% discount applied!", p.Message)
		})
	}

	// Validation is read-only.
	assert.Equal(t, 1, repo.codes["ONCE"].UsedCount)
	assert.Equal(t, 0, repo.codes["SAVE20"].UsedCount)
}

func TestService_ValidateNegativeTotal(t *testing.T) {
	svc := NewService(newMockPromoRepo(), time.Second)
	_, err := svc.Validate(context.Background(), "SAVE20", decimal.NewFromInt(-1))
	require.Error(t, err)
	assert.Equal(t, fault.InvalidInput, fault.KindOf(err))
}

func TestService_CheckStoreTimeout(t *testing.T) {
	repo := newMockPromoRepo()
	repo.findErr = context.DeadlineExceeded

	_, err := NewService(repo, time.Second).Check(context.Background(), "SAVE20")
	require.Error(t, err)
	assert.Equal(t, fault.Unavailable, fault.KindOf(err))
}

func TestService_Create(t *testing.T) {
	fixedNow := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

	t.Run("sets expiry from valid days", func(t *testing.T) {
		repo := newMockPromoRepo()
		svc := NewService(repo, time.Second)
		svc.now = func() time.Time { return fixedNow }

		c, err := svc.Create(context.Background(), CreateInput{Code: "winter25", Percent: 25, ValidDays: 30, MaxUses: intPtr(100)})
		require.NoError(t, err)
		assert.Equal(t, "WINTER25", c.Code)
		assert.Equal(t, fixedNow.AddDate(0, 0, 30), c.ExpiresAt)
		assert.True(t, c.Active)
		assert.Equal(t, 0, c.UsedCount)
		assert.Same(t, c, repo.created)
	})

	t.Run("duplicate", func(t *testing.T) {
		repo := newMockPromoRepo(Code{ID: "1", Code: "WINTER25"})
		_, err := NewService(repo, time.Second).Create(context.Background(), CreateInput{Code: "Winter25", Percent: 25, ValidDays: 30})
		require.ErrorIs(t, err, ErrDuplicate)
	})

	invalid := []struct {
		name string
		in   CreateInput
	}{
		{name: "empty code", in: CreateInput{Percent: 10, ValidDays: 1}},
		{name: "zero percent", in: CreateInput{Code: "A", Percent: 0, ValidDays: 1}},
		{name: "over 100 percent", in: CreateInput{Code: "A", Percent: 101, ValidDays: 1}},
		{name: "zero days", in: CreateInput{Code: "A", Percent: 10}},
		{name: "zero max uses", in: CreateInput{Code: "A", Percent: 10, ValidDays: 1, MaxUses: intPtr(0)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewService(newMockPromoRepo(), time.Second).Create(context.Background(), tt.in)
			require.Error(t, err)
			assert.Equal(t, fault.InvalidInput, fault.KindOf(err))
		})
	}
}

func TestService_ListAndToggle(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := newMockPromoRepo(
		Code{ID: "1", Code: "A", Percent: 10, ExpiresAt: fixedNow.Add(time.Hour), Active: true},
	)
	svc := NewService(repo, time.Second)
	svc.now = func() time.Time { return fixedNow }

	listed, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.True(t, listed[0].Valid)

	c, err := svc.Toggle(context.Background(), "1")
	require.NoError(t, err)
	assert.False(t, c.Active)

	listed, err = svc.List(context.Background())
	require.NoError(t, err)
	assert.False(t, listed[0].Valid)

	_, err = svc.Toggle(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

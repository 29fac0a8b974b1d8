package product

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/domain/fault"
)

type mockRepo struct {
	byID    map[string]*Product
	created *Product
	updated *Product
}

func newMockRepo(products ...Product) *mockRepo {
	m := &mockRepo{byID: make(map[string]*Product)}
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return m
}

func (m *mockRepo) GetByID(_ context.Context, id string) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) GetByIDs(_ context.Context, ids []string) ([]Product, error) {
	var out []Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) List(_ context.Context, f Filter) ([]Product, error) {
	var out []Product
	for _, p := range m.byID {
		if f.Match(p) {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepo) Create(_ context.Context, p *Product) error {
	m.created = p
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Update(_ context.Context, p *Product) error {
	m.updated = p
	m.byID[p.ID] = p
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) SetSoldOut(_ context.Context, id string, soldOut bool) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	p.SoldOut = soldOut
	return p, nil
}

func validInput() Input {
	return Input{
		Name:        "Essential Hoodie",
		Price:       decimal.RequireFromString("750"),
		Description: "Heavyweight fleece",
		Category:    "hoodies",
		Colors:      []string{"Black", "Grey"},
		Sizes:       []string{"M", "L"},
		Images:      []string{"hoodie-front.jpg"},
	}
}

func TestService_Create(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	p, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, CategoryHoodies, p.Category)
	assert.Equal(t, fixed, p.CreatedAt)
	assert.Same(t, p, repo.created)
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *Input)
	}{
		{name: "empty name", mutate: func(in *Input) { in.Name = "  " }},
		{name: "empty description", mutate: func(in *Input) { in.Description = "" }},
		{name: "negative price", mutate: func(in *Input) { in.Price = decimal.NewFromInt(-1) }},
		{name: "unknown category", mutate: func(in *Input) { in.Category = "SHOES" }},
		{name: "no colors", mutate: func(in *Input) { in.Colors = nil }},
		{name: "no sizes", mutate: func(in *Input) { in.Sizes = nil }},
		{name: "no images", mutate: func(in *Input) { in.Images = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			_, err := NewService(newMockRepo()).Create(context.Background(), in)
			require.Error(t, err)
			assert.Equal(t, fault.InvalidInput, fault.KindOf(err))
		})
	}
}

func TestService_UpdateKeepsImages(t *testing.T) {
	repo := newMockRepo(Product{
		ID:     "p1",
		Name:   "Old",
		Images: []string{"keep.jpg"},
	})
	in := validInput()
	in.Images = nil

	p, err := NewService(repo).Update(context.Background(), "p1", in)
	require.NoError(t, err)
	assert.Equal(t, "Essential Hoodie", p.Name)
	assert.Equal(t, []string{"keep.jpg"}, p.Images)
}

func TestService_UpdateNotFound(t *testing.T) {
	_, err := NewService(newMockRepo()).Update(context.Background(), "missing", validInput())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestService_ToggleSoldOut(t *testing.T) {
	repo := newMockRepo(Product{ID: "p1"})
	svc := NewService(repo)

	p, err := svc.ToggleSoldOut(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, p.SoldOut)

	p, err = svc.ToggleSoldOut(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, p.SoldOut)
}

func TestFilter_Match(t *testing.T) {
	soldOut := true
	p := &Product{
		Name:        "Cargo Pants",
		Description: "Relaxed fit with six pockets",
		Category:    CategoryPants,
		SoldOut:     true,
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty filter", filter: Filter{}, want: true},
		{name: "category match", filter: Filter{Category: CategoryPants}, want: true},
		{name: "category mismatch", filter: Filter{Category: CategoryHoodies}, want: false},
		{name: "search in name", filter: Filter{Search: "cargo"}, want: true},
		{name: "search in description", filter: Filter{Search: "POCKETS"}, want: true},
		{name: "search miss", filter: Filter{Search: "denim"}, want: false},
		{name: "sold out", filter: Filter{SoldOut: &soldOut}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(p))
		})
	}
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory(" t-shirts ")
	require.True(t, ok)
	assert.Equal(t, CategoryTShirts, c)

	_, ok = ParseCategory("all")
	assert.False(t, ok)
}

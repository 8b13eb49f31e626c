package repository_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/nikolayk812/storefront-cart/internal/domain"
	"github.com/nikolayk812/storefront-cart/internal/kvstore"
	"github.com/nikolayk812/storefront-cart/internal/logger"
	"github.com/nikolayk812/storefront-cart/internal/notify"
	"github.com/nikolayk812/storefront-cart/internal/port"
	"github.com/nikolayk812/storefront-cart/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/text/currency"
)

type cartRepositorySuite struct {
	suite.Suite

	backend *kvstore.Memory
	store   port.SessionStore
	bus     *notify.Bus
	repo    port.CartRepository
}

// entry point to run the tests in the suite
func TestCartRepositorySuite(t *testing.T) {
	suite.Run(t, new(cartRepositorySuite))
}

// before each test in the suite
func (suite *cartRepositorySuite) SetupTest() {
	suite.backend = kvstore.NewMemory()
	suite.store = suite.backend.Session()
	suite.bus = notify.NewBus(logger.Nop())

	var err error
	suite.repo, err = repository.NewCart(suite.T().Context(), suite.store, suite.bus, currency.INR, logger.Nop())
	suite.Require().NoError(err)
}

func (suite *cartRepositorySuite) TestAddItem() {
	tests := []struct {
		name      string
		setup     []addCall
		product   domain.Product
		qty       int
		wantLines []domain.CartLine
	}{
		{
			name:    "add new product: ok",
			product: product("7", "Shirt", 499),
			qty:     2,
			wantLines: []domain.CartLine{
				line("7", "Shirt", 499, 2),
			},
		},
		{
			name:    "add existing product increments quantity: ok",
			setup:   []addCall{{product("7", "Shirt", 499), 1}},
			product: product("7", "Shirt", 499),
			qty:     3,
			wantLines: []domain.CartLine{
				line("7", "Shirt", 499, 4),
			},
		},
		{
			name:    "add zero quantity is floored to one: ok",
			product: product("7", "Shirt", 499),
			qty:     0,
			wantLines: []domain.CartLine{
				line("7", "Shirt", 499, 1),
			},
		},
		{
			name:    "add non-positive quantity to existing line adds one: ok",
			setup:   []addCall{{product("7", "Shirt", 499), 2}},
			product: product("7", "Shirt", 499),
			qty:     -3,
			wantLines: []domain.CartLine{
				line("7", "Shirt", 499, 3),
			},
		},
		{
			name:      "add product without id is ignored: ok",
			product:   product("", "Ghost", 10),
			qty:       1,
			wantLines: []domain.CartLine{},
		},
		{
			name:    "add product without name uses placeholder: ok",
			product: product("8", "", 10),
			qty:     1,
			wantLines: []domain.CartLine{
				line("8", "Product", 10, 1),
			},
		},
		{
			name:    "variants are separate lines: ok",
			setup:   []addCall{{withVariant(product("7", "Shirt", 499), "red", "M"), 1}},
			product: withVariant(product("7", "Shirt", 499), "blue", "M"),
			qty:     1,
			wantLines: []domain.CartLine{
				withLineVariant(line("7", "Shirt", 499, 1), "red", "M"),
				withLineVariant(line("7", "Shirt", 499, 1), "blue", "M"),
			},
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.SetupTest()
			t := suite.T()
			ctx := t.Context()

			for _, c := range tt.setup {
				require.NoError(t, suite.repo.AddItem(ctx, c.product, c.qty))
			}

			err := suite.repo.AddItem(ctx, tt.product, tt.qty)
			require.NoError(t, err)

			assertLines(t, tt.wantLines, suite.repo.Items())
			if len(tt.wantLines) > 0 {
				suite.assertPersisted(tt.wantLines)
			}
		})
	}
}

func (suite *cartRepositorySuite) TestAddItemAvailability() {
	t := suite.T()
	ctx := t.Context()

	p := product("9", "Saree", 1200)
	require.NoError(t, suite.repo.AddItem(ctx, p, 1))
	assert.True(t, suite.repo.Items()[0].Available, "silent backend defaults to available")

	p.Available = domain.Bool(false)
	require.NoError(t, suite.repo.AddItem(ctx, p, 1))
	assert.False(t, suite.repo.Items()[0].Available)

	p.Available = nil
	require.NoError(t, suite.repo.AddItem(ctx, p, 1))
	assert.False(t, suite.repo.Items()[0].Available, "silent add keeps the stored flag")
	assert.Equal(t, 3, suite.repo.Items()[0].Quantity)
}

func (suite *cartRepositorySuite) TestSetQuantity() {
	tests := []struct {
		name    string
		key     string
		qty     int
		wantQty int
	}{
		{
			name:    "set quantity: ok",
			key:     domain.ComputeKey("7", "", ""),
			qty:     5,
			wantQty: 5,
		},
		{
			name:    "set negative quantity floors to one: ok",
			key:     domain.ComputeKey("7", "", ""),
			qty:     -3,
			wantQty: 1,
		},
		{
			name:    "set quantity of unknown key: no-op",
			key:     "missing|x|y",
			qty:     9,
			wantQty: 2,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			suite.SetupTest()
			t := suite.T()
			ctx := t.Context()

			require.NoError(t, suite.repo.AddItem(ctx, product("7", "Shirt", 499), 2))

			err := suite.repo.SetQuantity(ctx, tt.key, tt.qty)
			require.NoError(t, err)

			items := suite.repo.Items()
			require.Len(t, items, 1)
			assert.Equal(t, tt.wantQty, items[0].Quantity)
			suite.assertPersisted(items)
		})
	}
}

func (suite *cartRepositorySuite) TestRemoveAndClear() {
	t := suite.T()
	ctx := t.Context()

	require.NoError(t, suite.repo.AddItem(ctx, product("1", "A", 100), 1))
	require.NoError(t, suite.repo.AddItem(ctx, product("2", "B", 200), 1))

	require.NoError(t, suite.repo.RemoveItem(ctx, "nope"))
	assert.Len(t, suite.repo.Items(), 2)

	require.NoError(t, suite.repo.RemoveItem(ctx, domain.ComputeKey("1", "", "")))
	assertLines(t, []domain.CartLine{line("2", "B", 200, 1)}, suite.repo.Items())
	suite.assertPersisted(suite.repo.Items())

	require.NoError(t, suite.repo.Clear(ctx))
	assert.Empty(t, suite.repo.Items())
	suite.assertRaw(repository.KeyCart, "[]")
	suite.assertRaw(repository.KeyCartItems, "[]")
}

func (suite *cartRepositorySuite) TestSubtotal() {
	t := suite.T()
	ctx := t.Context()

	assert.True(t, suite.repo.Subtotal().Equal(domain.ZeroMoney(currency.INR)))

	require.NoError(t, suite.repo.AddItem(ctx, product("1", "A", 100), 2))
	require.NoError(t, suite.repo.AddItem(ctx, product("2", "B", 150), 1))

	assert.Equal(t, "INR 350.00", suite.repo.Subtotal().String())
}

func (suite *cartRepositorySuite) TestSingleItemJourney() {
	t := suite.T()
	ctx := t.Context()

	var events []domain.CartOp
	suite.bus.OnCartChanged(func(_ context.Context, e domain.CartChanged) {
		events = append(events, e.Op)
	})

	p := product("42", "Kurta", 999)
	require.NoError(t, suite.repo.AddItem(ctx, p, 1))
	assert.Equal(t, "INR 999.00", suite.repo.Subtotal().String())

	require.NoError(t, suite.repo.SetQuantity(ctx, p.Key(), 3))
	assert.Equal(t, "INR 2997.00", suite.repo.Subtotal().String())

	require.NoError(t, suite.repo.RemoveItem(ctx, p.Key()))
	assert.Equal(t, "INR 0.00", suite.repo.Subtotal().String())
	assert.Empty(t, suite.repo.Items())

	assert.Equal(t, []domain.CartOp{domain.OpAdd, domain.OpSetQuantity, domain.OpRemove}, events)
}

func (suite *cartRepositorySuite) TestNoOpMutationDoesNotNotify() {
	t := suite.T()
	ctx := t.Context()

	notified := 0
	suite.bus.OnCartChanged(func(context.Context, domain.CartChanged) { notified++ })

	require.NoError(t, suite.repo.RemoveItem(ctx, "absent"))
	require.NoError(t, suite.repo.SetQuantity(ctx, "absent", 3))
	require.NoError(t, suite.repo.AddItem(ctx, domain.Product{Name: "no id"}, 1))

	assert.Zero(t, notified)
	_, ok, err := suite.store.Get(ctx, repository.KeyCart)
	require.NoError(t, err)
	assert.False(t, ok, "nothing should be written")
}

func (suite *cartRepositorySuite) TestRoundTripAcrossRestart() {
	t := suite.T()
	ctx := t.Context()

	cotton := decimal.NewFromInt(60)
	p := withVariant(product("5", "Dress", 1499), "green", "L")
	p.Variant.Brand = gofakeit.Company()
	p.Variant.Weight = "250g"
	p.Variant.CottonPercentage = &cotton
	p.MainCategory = "women"
	p.SubCategory = "dresses"
	p.Images = []string{"", "https://cdn.example/dress.jpg"}

	require.NoError(t, suite.repo.AddItem(ctx, p, 2))
	require.NoError(t, suite.repo.AddItem(ctx, product("6", "Scarf", 299), 1))

	restarted, err := repository.NewCart(ctx, suite.backend.Session(), notify.NewBus(logger.Nop()), currency.INR, logger.Nop())
	require.NoError(t, err)

	assertLines(t, suite.repo.Items(), restarted.Items())
	assert.Equal(t, "https://cdn.example/dress.jpg", restarted.Items()[0].Image)
}

func (suite *cartRepositorySuite) TestQuotaExceeded() {
	t := suite.T()
	ctx := t.Context()

	require.NoError(t, suite.repo.AddItem(ctx, product("1", "A", 100), 1))
	before := suite.repo.Items()

	suite.backend.SetQuota(1)

	notified := false
	suite.bus.OnCartChanged(func(context.Context, domain.CartChanged) { notified = true })

	err := suite.repo.AddItem(ctx, product("2", "B", 200), 1)
	require.ErrorIs(t, err, domain.ErrCartNotUpdated)

	assertLines(t, before, suite.repo.Items())
	assert.False(t, notified)

	suite.backend.SetQuota(0)
	suite.assertPersisted(before)
}

func (suite *cartRepositorySuite) TestPartialWriteIsNotTrusted() {
	t := suite.T()
	ctx := t.Context()

	flaky := &cartOnlyStore{SessionStore: suite.backend.Session()}
	repo, err := repository.NewCart(ctx, flaky, suite.bus, currency.INR, logger.Nop())
	require.NoError(t, err)

	err = repo.AddItem(ctx, product("1", "A", 100), 1)
	require.ErrorIs(t, err, domain.ErrCartNotUpdated)
	assert.Empty(t, repo.Items())
}

func (suite *cartRepositorySuite) TestReadsLegacyFormat() {
	t := suite.T()
	ctx := t.Context()

	legacy := `[
		{"id": 42, "name": "Kurta", "price": "999", "qty": "3", "category": "men", "image": null},
		{"id": "7", "name": "Cap", "price": 150.5, "available": "false", "weight": 120},
		{"id": 7, "name": "Cap again", "price": 1},
		"not an object"
	]`
	require.NoError(t, suite.store.Set(ctx, repository.KeyCartItems, legacy))
	require.NoError(t, suite.repo.Reload(ctx))

	items := suite.repo.Items()
	require.Len(t, items, 2)

	assert.Equal(t, "42||", items[0].Key)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "men", items[0].MainCategory)
	assert.True(t, items[0].Available)

	assert.Equal(t, "7||", items[1].Key)
	assert.Equal(t, 1, items[1].Quantity)
	assert.False(t, items[1].Available)
	assert.Equal(t, "120", items[1].Variant.Weight)
	assert.True(t, items[1].Price.Amount.Equal(decimal.RequireFromString("150.5")))
}

func (suite *cartRepositorySuite) TestMalformedCartReadsEmpty() {
	t := suite.T()
	ctx := t.Context()

	require.NoError(t, suite.store.Set(ctx, repository.KeyCart, "{oops"))
	require.NoError(t, suite.repo.Reload(ctx))
	assert.Empty(t, suite.repo.Items())

	require.NoError(t, suite.repo.AddItem(ctx, product("1", "A", 100), 1))
	suite.assertPersisted(suite.repo.Items())
}

func (suite *cartRepositorySuite) TestMutationSeesOtherSessionWrites() {
	t := suite.T()
	ctx := t.Context()

	other, err := repository.NewCart(ctx, suite.backend.Session(), notify.NewBus(logger.Nop()), currency.INR, logger.Nop())
	require.NoError(t, err)

	require.NoError(t, other.AddItem(ctx, product("1", "A", 100), 1))
	require.NoError(t, suite.repo.AddItem(ctx, product("2", "B", 200), 1))

	assertLines(t, []domain.CartLine{
		line("1", "A", 100, 1),
		line("2", "B", 200, 1),
	}, suite.repo.Items())
}

func (suite *cartRepositorySuite) TestExternalChangeReloads() {
	t := suite.T()
	ctx := t.Context()

	other, err := repository.NewCart(ctx, suite.backend.Session(), notify.NewBus(logger.Nop()), currency.INR, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, other.AddItem(ctx, product("1", "A", 100), 4))

	assert.Empty(t, suite.repo.Items())

	suite.bus.PublishCartChanged(ctx, domain.CartChanged{Op: domain.OpExternal, External: true})

	assertLines(t, other.Items(), suite.repo.Items())
}

func (suite *cartRepositorySuite) TestCloseStopsExternalReloads() {
	t := suite.T()
	ctx := t.Context()

	suite.repo.Close()
	suite.repo.Close()

	other, err := repository.NewCart(ctx, suite.backend.Session(), notify.NewBus(logger.Nop()), currency.INR, logger.Nop())
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.AddItem(ctx, product("1", "A", 100), 4))

	suite.bus.PublishCartChanged(ctx, domain.CartChanged{Op: domain.OpExternal, External: true})
	assert.Empty(t, suite.repo.Items())

	// still usable after Close; mutations read the store fresh
	require.NoError(t, suite.repo.AddItem(ctx, product("2", "B", 50), 1))
	assert.Len(t, suite.repo.Items(), 2)
}

func (suite *cartRepositorySuite) TestAddEventCarriesAddedQuantity() {
	t := suite.T()
	ctx := t.Context()

	var events []domain.CartChanged
	unsubscribe := suite.bus.OnCartChanged(func(_ context.Context, e domain.CartChanged) {
		events = append(events, e)
	})
	defer unsubscribe()

	require.NoError(t, suite.repo.AddItem(ctx, product("7", "Shirt", 499), 2))
	require.NoError(t, suite.repo.AddItem(ctx, product("7", "Shirt", 499), 0))

	require.Len(t, events, 2)
	assert.Equal(t, 2, events[0].Quantity)
	assert.Equal(t, 1, events[1].Quantity)
	assert.Equal(t, 3, suite.repo.Items()[0].Quantity, "local quantity grows by what the event reports")
}

func (suite *cartRepositorySuite) TestPatchAndReplace() {
	t := suite.T()
	ctx := t.Context()

	require.NoError(t, suite.repo.AddItem(ctx, product("1", "A", 100), 1))

	require.NoError(t, suite.repo.Patch(ctx, func(lines []domain.CartLine) ([]domain.CartLine, bool) {
		lines[0].Available = false
		return lines, true
	}))
	assert.False(t, suite.repo.Items()[0].Available)
	suite.assertPersisted(suite.repo.Items())

	require.NoError(t, suite.repo.Replace(ctx, []domain.CartLine{
		{ProductID: "3", Name: "C", Price: domain.NewMoney(decimal.NewFromInt(30), currency.INR), Quantity: 0, Available: true},
		{ProductID: "3", Name: "dup", Price: domain.NewMoney(decimal.NewFromInt(30), currency.INR), Quantity: 5, Available: true},
	}))
	assertLines(t, []domain.CartLine{line("3", "C", 30, 1)}, suite.repo.Items())

	require.Error(t, suite.repo.Patch(ctx, nil))
}

func (suite *cartRepositorySuite) TestConcurrentAdds() {
	t := suite.T()
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, suite.repo.AddItem(ctx, product(domain.ProductID(fmt.Sprint(i%4)), "P", 10), 1))
		}()
	}
	wg.Wait()

	total := 0
	for _, item := range suite.repo.Items() {
		total += item.Quantity
	}
	assert.Equal(t, 20, total)
	assert.Len(t, suite.repo.Items(), 4)
}

func (suite *cartRepositorySuite) assertPersisted(want []domain.CartLine) {
	t := suite.T()
	ctx := t.Context()

	cartRaw, ok, err := suite.store.Get(ctx, repository.KeyCart)
	require.NoError(t, err)
	require.True(t, ok)

	itemsRaw, ok, err := suite.store.Get(ctx, repository.KeyCartItems)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, cartRaw, itemsRaw, "cart and cartItems must hold the same value")

	fresh, err := repository.NewCart(ctx, suite.backend.Session(), notify.NewBus(logger.Nop()), currency.INR, logger.Nop())
	require.NoError(t, err)
	assertLines(t, want, fresh.Items())
}

func (suite *cartRepositorySuite) assertRaw(key, want string) {
	got, ok, err := suite.store.Get(suite.T().Context(), key)
	suite.Require().NoError(err)
	suite.True(ok)
	suite.Equal(want, got)
}

type addCall struct {
	product domain.Product
	qty     int
}

// cartOnlyStore drops every write to cartItems.
type cartOnlyStore struct {
	port.SessionStore
}

func (s *cartOnlyStore) SetMany(ctx context.Context, entries map[string]string) error {
	if v, ok := entries[repository.KeyCart]; ok {
		return s.SessionStore.Set(ctx, repository.KeyCart, v)
	}
	return nil
}

func product(id domain.ProductID, name string, price int64) domain.Product {
	return domain.Product{
		ID:    id,
		Name:  name,
		Price: decimal.NewFromInt(price),
	}
}

func withVariant(p domain.Product, color, size string) domain.Product {
	p.Variant.Color = color
	p.Variant.Size = size
	return p
}

func line(id domain.ProductID, name string, price int64, qty int) domain.CartLine {
	return domain.CartLine{
		Key:       domain.ComputeKey(id, "", ""),
		ProductID: id,
		Name:      name,
		Price:     domain.NewMoney(decimal.NewFromInt(price), currency.INR),
		Quantity:  qty,
		Available: true,
	}
}

func withLineVariant(l domain.CartLine, color, size string) domain.CartLine {
	l.Variant.Color = color
	l.Variant.Size = size
	l.Key = domain.ComputeKey(l.ProductID, color, size)
	return l
}

func assertLines(t *testing.T, expected, actual []domain.CartLine) {
	t.Helper()

	opts := cmp.Options{
		cmp.Comparer(func(a, b domain.Money) bool { return a.Equal(b) }),
		cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) }),
		cmpopts.EquateEmpty(),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)
}

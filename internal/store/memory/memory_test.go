package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"cafepos/backend/internal/domain"
	"cafepos/backend/internal/store"
)

func mustDec(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", value, err)
	}
	return d
}

func testSale(id string, createdAt time.Time, payment string, lines ...domain.SaleLine) domain.Sale {
	var total int64
	for _, line := range lines {
		total += line.LineTotalCents
	}
	return domain.Sale{
		ID:            id,
		TotalCents:    total,
		PaymentMethod: payment,
		CreatedAt:     createdAt,
		Lines:         lines,
	}
}

func TestCreateSaleValidatesWholeDemandBeforeDeducting(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale("sale-test-1", time.Now().UTC(), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-latte-m", ProductName: "Cafe Latte (M)", Qty: 1, UnitPriceCents: 12000, LineTotalCents: 12000},
	)
	demand := []domain.IngredientDemand{
		{IngredientID: "ing-beans", Qty: mustDec(t, "18")},
		{IngredientID: "ing-milk", Qty: mustDec(t, "999999")},
	}

	_, err := s.CreateSale(ctx, sale, demand)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected typed stock error, got %v", err)
	}
	if stockErr.IngredientName != "Fresh Milk" {
		t.Fatalf("expected shortage on Fresh Milk, got %q", stockErr.IngredientName)
	}
	if !stockErr.Required.Equal(mustDec(t, "999999")) || !stockErr.Available.Equal(mustDec(t, "20000")) {
		t.Fatalf("unexpected shortage amounts: %+v", stockErr)
	}

	// The earlier demand entry passed validation but must not be deducted.
	beans, err := s.GetIngredientByID(ctx, "ing-beans")
	if err != nil {
		t.Fatalf("get beans: %v", err)
	}
	if !beans.Quantity.Equal(mustDec(t, "5000")) {
		t.Fatalf("expected beans untouched at 5000, got %s", beans.Quantity)
	}

	if _, err := s.GetSaleByID(ctx, "sale-test-1"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected failed sale not to be stored, got %v", err)
	}
}

func TestCreateSaleDeductsOnSuccess(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale("sale-test-2", time.Now().UTC(), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-americano-m", ProductName: "Americano (M)", Qty: 1, UnitPriceCents: 9000, LineTotalCents: 9000},
	)
	demand := []domain.IngredientDemand{
		{IngredientID: "ing-beans", Qty: mustDec(t, "18")},
		{IngredientID: "ing-cup-12", Qty: mustDec(t, "1")},
	}

	created, err := s.CreateSale(ctx, sale, demand)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.TotalCents != 9000 {
		t.Fatalf("expected total 9000, got %d", created.TotalCents)
	}

	beans, err := s.GetIngredientByID(ctx, "ing-beans")
	if err != nil {
		t.Fatalf("get beans: %v", err)
	}
	if !beans.Quantity.Equal(mustDec(t, "4982")) {
		t.Fatalf("expected beans at 4982, got %s", beans.Quantity)
	}
	cups, err := s.GetIngredientByID(ctx, "ing-cup-12")
	if err != nil {
		t.Fatalf("get cups: %v", err)
	}
	if !cups.Quantity.Equal(mustDec(t, "299")) {
		t.Fatalf("expected cups at 299, got %s", cups.Quantity)
	}
}

func TestCreateSaleRejectsEmptyLines(t *testing.T) {
	s := NewSeeded()

	_, err := s.CreateSale(context.Background(), domain.Sale{ID: "sale-x"}, nil)
	if !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction, got %v", err)
	}
}

func TestUpsertRecipeLinkReplacesExistingPair(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	saved, err := s.UpsertRecipeLink(ctx, domain.RecipeLink{
		ProductID:    "prod-americano-m",
		IngredientID: "ing-beans",
		QtyPerUnit:   mustDec(t, "25"),
	})
	if err != nil {
		t.Fatalf("upsert link: %v", err)
	}
	if saved.ID != "rl-amer-m-beans" {
		t.Fatalf("expected existing link id to be kept, got %s", saved.ID)
	}
	if saved.IngredientName != "Espresso Beans" {
		t.Fatalf("expected ingredient name attached, got %q", saved.IngredientName)
	}

	links, err := s.ListRecipeLinks(ctx, "prod-americano-m")
	if err != nil {
		t.Fatalf("list links: %v", err)
	}
	if len(links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(links))
	}
	for _, link := range links {
		if link.IngredientID == "ing-beans" && !link.QtyPerUnit.Equal(mustDec(t, "25")) {
			t.Fatalf("expected qty replaced with 25, got %s", link.QtyPerUnit)
		}
	}
}

func TestDeleteProductCascadesRecipeLinks(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.DeleteProduct(ctx, "prod-latte-m"); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := s.GetProductByID(ctx, "prod-latte-m"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected product gone, got %v", err)
	}
	if _, err := s.GetRecipeLinkByID(ctx, "rl-latte-m-milk"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected recipe links gone with product, got %v", err)
	}
}

func TestDeleteIngredientRefusedWhileRecipeReferencesIt(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.DeleteIngredient(ctx, "ing-milk"); !errors.Is(err, store.ErrInvalidTransaction) {
		t.Fatalf("expected invalid transaction, got %v", err)
	}

	// The unreferenced path still works once its links are removed.
	if err := s.DeleteRecipeLink(ctx, "rl-choco-cocoa"); err != nil {
		t.Fatalf("delete link: %v", err)
	}
	if err := s.DeleteIngredient(ctx, "ing-cocoa"); err != nil {
		t.Fatalf("expected delete to succeed after removing links, got %v", err)
	}
}

func TestListSalesOrderAndLimit(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	base := time.Date(2026, time.March, 18, 1, 0, 0, 0, time.UTC)

	for i, id := range []string{"sale-a", "sale-b", "sale-c"} {
		sale := testSale(id, base.Add(time.Duration(i)*time.Hour), domain.PaymentCash,
			domain.SaleLine{ProductID: "prod-muffin", ProductName: "Banana Muffin", Qty: 1, UnitPriceCents: 7500, LineTotalCents: 7500},
		)
		if _, err := s.CreateSale(ctx, sale, nil); err != nil {
			t.Fatalf("create sale %s: %v", id, err)
		}
	}

	sales, err := s.ListSales(ctx, domain.SaleFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(sales))
	}
	if sales[0].ID != "sale-c" || sales[1].ID != "sale-b" {
		t.Fatalf("expected newest first, got %s then %s", sales[0].ID, sales[1].ID)
	}
}

func TestListSalesFilterByPaymentAndSearch(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	now := time.Now().UTC()

	cash := testSale("sale-cash", now, domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-americano-m", ProductName: "Americano (M)", Qty: 1, UnitPriceCents: 9000, LineTotalCents: 9000},
	)
	digital := testSale("sale-digital", now.Add(time.Minute), domain.PaymentDigital,
		domain.SaleLine{ProductID: "prod-latte-m", ProductName: "Cafe Latte (M)", Qty: 1, UnitPriceCents: 12000, LineTotalCents: 12000},
	)
	for _, sale := range []domain.Sale{cash, digital} {
		if _, err := s.CreateSale(ctx, sale, nil); err != nil {
			t.Fatalf("create sale %s: %v", sale.ID, err)
		}
	}

	sales, err := s.ListSales(ctx, domain.SaleFilter{Payment: "cash"})
	if err != nil {
		t.Fatalf("list cash: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != "sale-cash" {
		t.Fatalf("expected only the cash sale, got %+v", sales)
	}

	sales, err = s.ListSales(ctx, domain.SaleFilter{Payment: "digital"})
	if err != nil {
		t.Fatalf("list digital: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != "sale-digital" {
		t.Fatalf("expected only the digital sale, got %+v", sales)
	}

	sales, err = s.ListSales(ctx, domain.SaleFilter{Search: "#sale-cash"})
	if err != nil {
		t.Fatalf("search by id: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != "sale-cash" {
		t.Fatalf("expected id match, got %+v", sales)
	}

	sales, err = s.ListSales(ctx, domain.SaleFilter{Search: "latte"})
	if err != nil {
		t.Fatalf("search by name: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != "sale-digital" {
		t.Fatalf("expected product name match, got %+v", sales)
	}
}

func TestGetSalesByHourShiftsToShopTime(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// 02:30 UTC is 10:30 in a UTC+8 shop.
	sale := testSale("sale-hour", time.Date(2026, time.March, 18, 2, 30, 0, 0, time.UTC), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-muffin", ProductName: "Banana Muffin", Qty: 1, UnitPriceCents: 7500, LineTotalCents: 7500},
	)
	if _, err := s.CreateSale(ctx, sale, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	points, err := s.GetSalesByHour(ctx, time.Time{}, time.Time{}, 8)
	if err != nil {
		t.Fatalf("sales by hour: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected 1 hour bucket, got %d", len(points))
	}
	if points[0].Hour != 10 {
		t.Fatalf("expected hour 10 after offset, got %d", points[0].Hour)
	}
	if points[0].RevenueCents != 7500 || points[0].Transactions != 1 {
		t.Fatalf("unexpected bucket %+v", points[0])
	}
}

func TestGetSalesByWeekdayOrdersMondayFirst(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	// Sunday March 15 and Monday March 16, both mid-day UTC.
	sunday := testSale("sale-sun", time.Date(2026, time.March, 15, 4, 0, 0, 0, time.UTC), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-muffin", ProductName: "Banana Muffin", Qty: 1, UnitPriceCents: 7500, LineTotalCents: 7500},
	)
	monday := testSale("sale-mon", time.Date(2026, time.March, 16, 4, 0, 0, 0, time.UTC), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-muffin", ProductName: "Banana Muffin", Qty: 1, UnitPriceCents: 7500, LineTotalCents: 7500},
	)
	for _, sale := range []domain.Sale{sunday, monday} {
		if _, err := s.CreateSale(ctx, sale, nil); err != nil {
			t.Fatalf("create sale %s: %v", sale.ID, err)
		}
	}

	points, err := s.GetSalesByWeekday(ctx, time.Time{}, time.Time{}, 8)
	if err != nil {
		t.Fatalf("sales by weekday: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("expected 2 weekday buckets, got %d", len(points))
	}
	if points[0].Weekday != "Monday" || points[1].Weekday != "Sunday" {
		t.Fatalf("expected Monday before Sunday, got %s then %s", points[0].Weekday, points[1].Weekday)
	}
}

func TestGetSalesCostUsesCurrentProductCost(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	sale := testSale("sale-cost", time.Now().UTC(), domain.PaymentCash,
		domain.SaleLine{ProductID: "prod-americano-m", ProductName: "Americano (M)", Qty: 2, UnitPriceCents: 9000, LineTotalCents: 18000},
	)
	if _, err := s.CreateSale(ctx, sale, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	cost, err := s.GetSalesCost(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("sales cost: %v", err)
	}
	// 2 units at cost 19.80 pesos is 3960 centavos.
	if cost != 3960 {
		t.Fatalf("expected cost 3960, got %d", cost)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	if err := s.SaveSettings(ctx, map[string]string{"ShopName": "Corner Brew"}); err != nil {
		t.Fatalf("save settings: %v", err)
	}
	settings, err := s.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get settings: %v", err)
	}
	if settings["ShopName"] != "Corner Brew" {
		t.Fatalf("expected saved value, got %q", settings["ShopName"])
	}
}

func TestSeededUsersExist(t *testing.T) {
	s := NewSeeded()

	users, err := s.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	roles := make(map[string]string, len(users))
	for _, user := range users {
		roles[user.Username] = user.Role
	}
	if roles["admin"] != domain.RoleAdmin {
		t.Fatalf("expected seeded admin account, got %+v", roles)
	}
	if roles["cashier"] != domain.RoleCashier {
		t.Fatalf("expected seeded cashier account, got %+v", roles)
	}
}

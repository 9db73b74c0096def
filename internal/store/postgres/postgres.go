package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"cafepos/backend/internal/domain"
	"cafepos/backend/internal/store"
	"cafepos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), price_cents, cost_price, unit, is_composite
		FROM products
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostPrice, &p.Unit, &p.IsComposite); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(category, ''), price_cents, cost_price, unit, is_composite
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostPrice, &p.Unit, &p.IsComposite)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	if len(ids) == 0 {
		return map[string]domain.Product{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), price_cents, cost_price, unit, is_composite
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.PriceCents, &p.CostPrice, &p.Unit, &p.IsComposite); err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, price_cents, cost_price, unit, is_composite, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now(),now())
	`, product.ID, product.Name, nullIfEmpty(product.Category), product.PriceCents, product.CostPrice, product.Unit, product.IsComposite)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.PriceCents < 1 {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, price_cents = $4, cost_price = $5, unit = $6, is_composite = $7, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, nullIfEmpty(product.Category), product.PriceCents, product.CostPrice, product.Unit, product.IsComposite)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM recipe_links WHERE product_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}

	return tx.Commit()
}

func (s *Store) SetProductCost(ctx context.Context, productID string, cost decimal.Decimal, composite bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET cost_price = $2, is_composite = $3, updated_at = now()
		WHERE id = $1
	`, productID, cost, composite)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), COALESCE(supplier_id, ''), cost_per_unit, quantity, unit, low_stock_threshold
		FROM ingredients
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIngredients(rows)
}

func (s *Store) GetIngredientByID(ctx context.Context, id string) (*domain.Ingredient, error) {
	var ing domain.Ingredient
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(category, ''), COALESCE(supplier_id, ''), cost_per_unit, quantity, unit, low_stock_threshold
		FROM ingredients
		WHERE id = $1
	`, id).Scan(&ing.ID, &ing.Name, &ing.Category, &ing.SupplierID, &ing.CostPerUnit, &ing.Quantity, &ing.Unit, &ing.LowStockThreshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &ing, nil
}

func (s *Store) GetIngredientsByIDs(ctx context.Context, ids []string) (map[string]domain.Ingredient, error) {
	if len(ids) == 0 {
		return map[string]domain.Ingredient{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), COALESCE(supplier_id, ''), cost_per_unit, quantity, unit, low_stock_threshold
		FROM ingredients
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ingredients, err := scanIngredients(rows)
	if err != nil {
		return nil, err
	}
	result := make(map[string]domain.Ingredient, len(ingredients))
	for _, ing := range ingredients {
		result[ing.ID] = ing
	}
	return result, nil
}

func (s *Store) CreateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.Name == "" || ingredient.Unit == "" {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.Quantity.IsNegative() || ingredient.CostPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.ID == "" {
		ingredient.ID = xid.New("ing")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingredients (id, name, category, supplier_id, cost_per_unit, quantity, unit, low_stock_threshold, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,now(),now())
	`, ingredient.ID, ingredient.Name, nullIfEmpty(ingredient.Category), nullIfEmpty(ingredient.SupplierID),
		ingredient.CostPerUnit, ingredient.Quantity, ingredient.Unit, ingredient.LowStockThreshold)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := ingredient
	return &created, nil
}

func (s *Store) UpdateIngredient(ctx context.Context, ingredient domain.Ingredient) (*domain.Ingredient, error) {
	if ingredient.ID == "" || ingredient.Name == "" || ingredient.Unit == "" {
		return nil, store.ErrInvalidTransaction
	}
	if ingredient.Quantity.IsNegative() || ingredient.CostPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE ingredients
		SET name = $2, category = $3, supplier_id = $4, cost_per_unit = $5, quantity = $6, unit = $7, low_stock_threshold = $8, updated_at = now()
		WHERE id = $1
	`, ingredient.ID, ingredient.Name, nullIfEmpty(ingredient.Category), nullIfEmpty(ingredient.SupplierID),
		ingredient.CostPerUnit, ingredient.Quantity, ingredient.Unit, ingredient.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := ingredient
	return &updated, nil
}

func (s *Store) DeleteIngredient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM ingredients WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: ingredient %s is referenced by a recipe", store.ErrInvalidTransaction, id)
		}
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLowStockIngredients(ctx context.Context) ([]domain.Ingredient, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(category, ''), COALESCE(supplier_id, ''), cost_per_unit, quantity, unit, low_stock_threshold
		FROM ingredients
		WHERE quantity <= low_stock_threshold
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIngredients(rows)
}

func (s *Store) ListRecipeLinks(ctx context.Context, productID string) ([]domain.RecipeLink, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rl.id, rl.product_id, rl.ingredient_id, i.name, rl.qty_per_unit
		FROM recipe_links rl
		JOIN ingredients i ON i.id = rl.ingredient_id
		WHERE rl.product_id = $1
		ORDER BY i.name
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecipeLinks(rows)
}

func (s *Store) GetRecipeLinksForProducts(ctx context.Context, productIDs []string) (map[string][]domain.RecipeLink, error) {
	result := make(map[string][]domain.RecipeLink, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT rl.id, rl.product_id, rl.ingredient_id, i.name, rl.qty_per_unit
		FROM recipe_links rl
		JOIN ingredients i ON i.id = rl.ingredient_id
		WHERE rl.product_id = ANY($1)
	`, productIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links, err := scanRecipeLinks(rows)
	if err != nil {
		return nil, err
	}
	for _, link := range links {
		result[link.ProductID] = append(result[link.ProductID], link)
	}
	for _, id := range productIDs {
		if _, ok := result[id]; !ok {
			result[id] = []domain.RecipeLink{}
		}
	}
	return result, nil
}

func (s *Store) GetRecipeLinkByID(ctx context.Context, linkID string) (*domain.RecipeLink, error) {
	var link domain.RecipeLink
	err := s.db.QueryRowContext(ctx, `
		SELECT rl.id, rl.product_id, rl.ingredient_id, i.name, rl.qty_per_unit
		FROM recipe_links rl
		JOIN ingredients i ON i.id = rl.ingredient_id
		WHERE rl.id = $1
	`, linkID).Scan(&link.ID, &link.ProductID, &link.IngredientID, &link.IngredientName, &link.QtyPerUnit)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (s *Store) UpsertRecipeLink(ctx context.Context, link domain.RecipeLink) (*domain.RecipeLink, error) {
	if link.QtyPerUnit.IsNegative() {
		return nil, store.ErrInvalidTransaction
	}
	if link.ID == "" {
		link.ID = xid.New("rl")
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO recipe_links (id, product_id, ingredient_id, qty_per_unit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,now(),now())
		ON CONFLICT (product_id, ingredient_id)
		DO UPDATE SET qty_per_unit = EXCLUDED.qty_per_unit, updated_at = now()
		RETURNING id
	`, link.ID, link.ProductID, link.IngredientID, link.QtyPerUnit).Scan(&link.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return s.GetRecipeLinkByID(ctx, link.ID)
}

func (s *Store) DeleteRecipeLink(ctx context.Context, linkID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM recipe_links WHERE id = $1`, linkID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, demand []domain.IngredientDemand) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidTransaction
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if len(demand) > 0 {
		ids := make([]string, 0, len(demand))
		for _, d := range demand {
			ids = append(ids, d.IngredientID)
		}

		// Row locks keep two concurrent sales from both passing validation
		// against stock that only one of them can satisfy.
		rows, err := pgTx.QueryContext(ctx, `
			SELECT id, name, quantity
			FROM ingredients
			WHERE id = ANY($1)
			FOR UPDATE
		`, ids)
		if err != nil {
			return nil, err
		}
		type ingredientState struct {
			name     string
			quantity decimal.Decimal
		}
		locked := make(map[string]ingredientState, len(ids))
		for rows.Next() {
			var id string
			var state ingredientState
			if err := rows.Scan(&id, &state.name, &state.quantity); err != nil {
				_ = rows.Close()
				return nil, err
			}
			locked[id] = state
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, err
		}
		_ = rows.Close()

		for _, d := range demand {
			state, ok := locked[d.IngredientID]
			if !ok {
				return nil, fmt.Errorf("%w: ingredient %s", store.ErrNotFound, d.IngredientID)
			}
			if state.quantity.LessThan(d.Qty) {
				return nil, &store.InsufficientStockError{
					IngredientName: state.name,
					Required:       d.Qty,
					Available:      state.quantity,
				}
			}
		}

		for _, d := range demand {
			_, err := pgTx.ExecContext(ctx, `
				UPDATE ingredients
				SET quantity = quantity - $1, updated_at = now()
				WHERE id = $2
			`, d.Qty, d.IngredientID)
			if err != nil {
				return nil, err
			}
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, total_cents, payment_method, created_at)
		VALUES ($1,$2,$3,$4)
	`, sale.ID, sale.TotalCents, sale.PaymentMethod, sale.CreatedAt)
	if err != nil {
		return nil, err
	}

	for _, line := range sale.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, product_name, qty, unit_price_cents, line_total_cents)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, sale.ID, line.ProductID, line.ProductName, line.Qty, line.UnitPriceCents, line.LineTotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	var sale domain.Sale
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cents, payment_method, created_at
		FROM sales
		WHERE id = $1
	`, id).Scan(&sale.ID, &sale.TotalCents, &sale.PaymentMethod, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lines, err := s.loadSaleLines(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines[sale.ID]
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("s.created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("s.created_at < $%d", len(args)))
	}
	switch filter.Payment {
	case "cash":
		args = append(args, domain.PaymentCash)
		conditions = append(conditions, fmt.Sprintf("s.payment_method = $%d", len(args)))
	case "digital":
		args = append(args, domain.PaymentCash)
		conditions = append(conditions, fmt.Sprintf("s.payment_method <> $%d", len(args)))
	}
	if term := strings.TrimSpace(strings.TrimPrefix(filter.Search, "#")); term != "" {
		args = append(args, term, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf(
			"(s.id = $%d OR EXISTS (SELECT 1 FROM sale_lines l WHERE l.sale_id = s.id AND l.product_name ILIKE $%d))",
			len(args)-1, len(args)))
	}

	query := `SELECT s.id, s.total_cents, s.payment_method, s.created_at FROM sales s`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY s.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	ids := make([]string, 0, 32)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.TotalCents, &sale.PaymentMethod, &sale.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, sale)
		ids = append(ids, sale.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := s.loadSaleLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) loadSaleLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_name, qty, unit_price_cents, line_total_cents
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY product_name
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.ProductName, &line.Qty, &line.UnitPriceCents, &line.LineTotalCents); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetSalesTotals(ctx context.Context, from time.Time, to time.Time) (int64, int64, error) {
	var revenue, count int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
	`, from, to).Scan(&revenue, &count)
	if err != nil {
		return 0, 0, err
	}
	return revenue, count, nil
}

func (s *Store) GetSalesCost(ctx context.Context, from time.Time, to time.Time) (int64, error) {
	var cost int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(ROUND(SUM(l.qty * p.cost_price * 100)), 0)::bigint
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		JOIN products p ON p.id = l.product_id
		WHERE s.created_at >= $1 AND s.created_at < $2
	`, from, to).Scan(&cost)
	if err != nil {
		return 0, err
	}
	return cost, nil
}

func (s *Store) GetTopProduct(ctx context.Context, from time.Time, to time.Time) (*domain.TopProduct, error) {
	var top domain.TopProduct
	err := s.db.QueryRowContext(ctx, `
		SELECT l.product_id, l.product_name, SUM(l.qty)::bigint AS qty_sold
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY l.product_id, l.product_name
		ORDER BY qty_sold DESC, l.product_id
		LIMIT 1
	`, from, to).Scan(&top.ProductID, &top.Name, &top.QtySold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &top, nil
}

func (s *Store) GetSalesByHour(ctx context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.HourlySalesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM created_at + make_interval(hours => $3))::int AS local_hour,
		       COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY local_hour
		ORDER BY local_hour
	`, from, to, offsetHours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]domain.HourlySalesPoint, 0, 24)
	for rows.Next() {
		var point domain.HourlySalesPoint
		if err := rows.Scan(&point.Hour, &point.RevenueCents, &point.Transactions); err != nil {
			return nil, err
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) GetSalesByWeekday(ctx context.Context, from time.Time, to time.Time, offsetHours int) ([]domain.WeekdaySalesPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(ISODOW FROM created_at + make_interval(hours => $3))::int AS local_dow,
		       COALESCE(SUM(total_cents), 0), COUNT(*)
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY local_dow
		ORDER BY local_dow
	`, from, to, offsetHours)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	points := make([]domain.WeekdaySalesPoint, 0, 7)
	for rows.Next() {
		var dow int
		var point domain.WeekdaySalesPoint
		if err := rows.Scan(&dow, &point.RevenueCents, &point.Transactions); err != nil {
			return nil, err
		}
		if dow >= 1 && dow <= 7 {
			point.Weekday = names[dow-1]
		}
		points = append(points, point)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func (s *Store) GetProfitByProduct(ctx context.Context, from time.Time, to time.Time) ([]domain.ProductProfit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.product_id, l.product_name,
		       SUM(l.qty)::bigint,
		       COALESCE(SUM(l.line_total_cents), 0),
		       COALESCE(ROUND(SUM(l.qty * p.cost_price * 100)), 0)::bigint
		FROM sale_lines l
		JOIN sales s ON s.id = l.sale_id
		JOIN products p ON p.id = l.product_id
		WHERE s.created_at >= $1 AND s.created_at < $2
		GROUP BY l.product_id, l.product_name
		ORDER BY 4 - 5 DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.ProductProfit, 0, 32)
	for rows.Next() {
		var row domain.ProductProfit
		if err := rows.Scan(&row.ProductID, &row.Name, &row.QtySold, &row.RevenueCents, &row.CostCents); err != nil {
			return nil, err
		}
		row.ProfitCents = row.RevenueCents - row.CostCents
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]domain.Category, 0, 16)
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, created_at)
		VALUES ($1,$2,now())
	`, category.ID, category.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidTransaction
		}
		return nil, err
	}

	created := category
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, COALESCE(contact_info, '') FROM suppliers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 16)
	for rows.Next() {
		var sup domain.Supplier
		if err := rows.Scan(&sup.ID, &sup.Name, &sup.ContactInfo); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, sup)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.Name == "" {
		return nil, store.ErrInvalidTransaction
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_info, created_at)
		VALUES ($1,$2,$3,now())
	`, supplier.ID, supplier.Name, nullIfEmpty(supplier.ContactInfo))
	if err != nil {
		return nil, err
	}

	created := supplier
	return &created, nil
}

func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM app_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string, 8)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for key, value := range settings {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO app_settings (key, value)
			VALUES ($1,$2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
		`, key, value)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidTransaction
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidTransaction
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanIngredients(rows *sql.Rows) ([]domain.Ingredient, error) {
	ingredients := make([]domain.Ingredient, 0, 32)
	for rows.Next() {
		var ing domain.Ingredient
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.Category, &ing.SupplierID, &ing.CostPerUnit, &ing.Quantity, &ing.Unit, &ing.LowStockThreshold); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, ing)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ingredients, nil
}

func scanRecipeLinks(rows *sql.Rows) ([]domain.RecipeLink, error) {
	links := make([]domain.RecipeLink, 0, 8)
	for rows.Next() {
		var link domain.RecipeLink
		if err := rows.Scan(&link.ID, &link.ProductID, &link.IngredientID, &link.IngredientName, &link.QtyPerUnit); err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23503"
	}
	return false
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}

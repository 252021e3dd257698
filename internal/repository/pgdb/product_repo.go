package pgdb

import (
	"context"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/marketplace/internal/usecase"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/tr"
	"github.com/jimlawless/whereami"
)

// ProductRepo реализует репозиторий продуктов поверх PostgreSQL.
type ProductRepo struct {
	db   DB
	conv converter.ProductConverter
}

func NewProductRepo(db DB, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		db:   db,
		conv: conv,
	}
}

// Select возвращает неархивные продукты, подходящие под фильтр, упорядоченные по id.
// nil criteria — все продукты.
func (p *ProductRepo) Select(ctx context.Context, criteria *domain.FilterCriteria) ([]domain.Product, error) {
	query, args := buildSelectProductsQuery(criteria)

	result, err := p.query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// SelectByIDs возвращает неархивные продукты с указанными id, упорядоченные по id.
// Отсутствующие id пропускаются.
func (p *ProductRepo) SelectByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	result, err := p.query(ctx, selectProductsByIDsQuery, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

func (p *ProductRepo) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := conn(ctx, p.db).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Product, 0)
	for rows.Next() {
		var model converter.ProductModel
		if err := rows.Scan(
			&model.ID, &model.Name, &model.CategoryID, &model.CategoryName, &model.Price,
			&model.Description, &model.ImageKey, &model.CreatedAt, &model.UpdatedAt, &model.IsArchived,
		); err != nil {
			return nil, err
		}

		result = append(result, *p.conv.ToEntity(&model))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Upsert идемпотентно создаёт или обновляет продукт по уникальному имени.
// Запись обновляется только при изменении хотя бы одного поля.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product) (*usecase.UpsertProductRes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES ($1, $2, $3, $4, $5) name, price, category_id, description, image_key
	query := `
		WITH upsert AS (
		INSERT INTO products (name, price, category_id, description, image_key)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name)
		DO UPDATE SET
			price = EXCLUDED.price,
			category_id = EXCLUDED.category_id,
			description = EXCLUDED.description,
			image_key = EXCLUDED.image_key,
			updated_at = NOW()
		WHERE
			products.price IS DISTINCT FROM EXCLUDED.price OR
			products.category_id IS DISTINCT FROM EXCLUDED.category_id OR
			products.description IS DISTINCT FROM EXCLUDED.description OR
			products.image_key IS DISTINCT FROM EXCLUDED.image_key
		RETURNING
			id, name, price, category_id, description, image_key, created_at, updated_at, is_archived,
			(xmax = 0) AS inserted
		)
		SELECT
			id, name, price, category_id, description, image_key, created_at, updated_at, is_archived,
			inserted, false AS no_changes
		FROM upsert

		UNION ALL

		SELECT
			id, name, price, category_id, description, image_key, created_at, updated_at, is_archived,
			false AS inserted, true AS no_changes
		FROM products
		WHERE name = $1
		  AND NOT EXISTS (SELECT 1 FROM upsert);
	`

	var (
		model     converter.ProductModel
		inserted  bool
		noChanges bool
	)
	err = tx.QueryRow(ctx, query,
		product.Name, product.Price, product.CategoryID, product.Description, product.ImageKey,
	).Scan(
		&model.ID, &model.Name, &model.Price, &model.CategoryID, &model.Description, &model.ImageKey,
		&model.CreatedAt, &model.UpdatedAt, &model.IsArchived, &inserted, &noChanges,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return usecase.NewUpsertProductRes(p.conv.ToEntity(&model), inserted, noChanges), nil
}

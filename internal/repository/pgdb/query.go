package pgdb

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/marketplace/internal/domain"
)

const selectProductsQuery = `
		SELECT pr.id, pr.name, pr.category_id, cat.name, pr.price,
		       pr.description, pr.image_key, pr.created_at, pr.updated_at, pr.is_archived
		FROM products pr
		JOIN categories cat ON pr.category_id = cat.id
		WHERE NOT pr.is_archived`

const selectProductsByIDsQuery = selectProductsQuery + `
		  AND pr.id = ANY($1)
		ORDER BY pr.id`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildSelectProductsQuery собирает запрос выдачи.
// Категория сравнивается как подстрока без учёта регистра, границы цены включительные.
func buildSelectProductsQuery(criteria *domain.FilterCriteria) (string, []any) {
	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(selectProductsQuery)

	if criteria != nil {
		if criteria.Category != "" {
			args = append(args, "%"+likeEscaper.Replace(criteria.Category)+"%")
			fmt.Fprintf(&sb, "\n\t\t  AND cat.name ILIKE $%d", len(args))
		}

		args = append(args, criteria.MinPrice, criteria.MaxPrice)
		fmt.Fprintf(&sb, "\n\t\t  AND pr.price BETWEEN $%d AND $%d", len(args)-1, len(args))
	}

	sb.WriteString("\n\t\tORDER BY pr.id")

	return sb.String(), args
}

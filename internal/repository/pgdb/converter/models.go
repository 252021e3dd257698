package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
// CategoryName заполняется только в выборках с JOIN categories.
type ProductModel struct {
	ID           int64      `db:"id"`
	Name         string     `db:"name"`
	CategoryID   int64      `db:"category_id"`
	CategoryName string     `db:"category_name"`
	Price        int64      `db:"price"`
	Description  string     `db:"description"`
	ImageKey     string     `db:"image_key"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
	IsArchived   bool       `db:"is_archived"`
}

// CategoryModel представляет запись таблицы categories в PostgreSQL.
type CategoryModel struct {
	ID         int64      `db:"id"`
	Name       string     `db:"name"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  *time.Time `db:"updated_at"`
	IsArchived bool       `db:"is_archived"`
}

// OutboxEventModel представляет запись таблицы outbox_events в PostgreSQL.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	ProductID   int64      `db:"product_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

package converter

import "time"

// ProductRedisModel — продукт в закэшированной выдаче.
// Подписанная ссылка на изображение не кэшируется: у неё свой срок жизни.
type ProductRedisModel struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	CategoryID  int64     `json:"category_id"`
	Price       int64     `json:"price"`
	Description string    `json:"description,omitempty"`
	ImageKey    string    `json:"image_key,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

package usecase

import (
	"time"

	"github.com/DRSN-tech/marketplace/internal/domain"
	"github.com/DRSN-tech/marketplace/internal/storefront"
)

// CATALOG IMPORT

// ImportProductReq описывает одну позицию импортируемого каталога.
type ImportProductReq struct {
	Name         string
	CategoryName string
	Price        int64 // в копейках
	Description  string
	Image        *ProductImage
}

// ImportCatalogReq запрос на импорт каталога.
type ImportCatalogReq struct {
	Products []ImportProductReq
}

// ImportCatalogRes итог импорта.
type ImportCatalogRes struct {
	Created   int
	Updated   int
	Unchanged int
}

// ProductImage представляет изображение продукта.
type ProductImage struct {
	Data     []byte // байты изображения
	MimeType string // image/jpeg
	Name     string // оригинальное имя файла (для логов)
}

// SESSIONS

// OpenSessionRes содержит новую витрину и её состояние после начальной загрузки.
type OpenSessionRes struct {
	ID    string
	State storefront.State
}

// AddToCartRes содержит добавленную позицию и состояние витрины.
type AddToCartRes struct {
	Item  domain.CartItem
	State storefront.State
}

// INFRASTUCTURE

// UploadImagesReq запрос на загрузку изображений.
type UploadImagesReq struct {
	Images []ProductImage
}

// UploadImagesRes содержит ключи изображений в том же порядке, что и в запросе.
// Uploaded содержит только ключи объектов, созданных этим запросом.
type UploadImagesRes struct {
	Keys     []string
	Uploaded []string
}

// WriteMessageReq сообщение для Kafka.
type WriteMessageReq struct {
	Key     string
	Payload []byte
}

// EmbedReq запрос на векторизацию текстов.
type EmbedReq struct {
	Texts []string
}

// EmbedRes вектор одного текста.
type EmbedRes struct {
	Vector       []float32
	ModelVersion string
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	ProductUpserted OutboxEventType = "product.upserted"
)

// OutboxEvent описывает событие, ожидающее отправки в Kafka.
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	ProductID   int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

// REPOSITORIES

type UpsertProductRes struct {
	Product   *domain.Product
	Inserted  bool
	NoChanges bool
}

// MAPPERS

func NewUpsertProductRes(product *domain.Product, inserted bool, noChanges bool) *UpsertProductRes {
	return &UpsertProductRes{
		Product:   product,
		Inserted:  inserted,
		NoChanges: noChanges,
	}
}

func NewProductImage(data []byte, mimeType string, name string) *ProductImage {
	return &ProductImage{
		Data:     data,
		MimeType: mimeType,
		Name:     name,
	}
}

func NewUploadImagesReq(images []ProductImage) *UploadImagesReq {
	return &UploadImagesReq{
		Images: images,
	}
}

func NewUploadImagesRes(keys []string, uploaded []string) *UploadImagesRes {
	return &UploadImagesRes{
		Keys:     keys,
		Uploaded: uploaded,
	}
}

func NewWriteMessageReq(key string, payload []byte) *WriteMessageReq {
	return &WriteMessageReq{
		Key:     key,
		Payload: payload,
	}
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, productID int64, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   eventID,
		EventType: eventType,
		ProductID: productID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}

func NewEmbedReq(texts []string) *EmbedReq {
	return &EmbedReq{
		Texts: texts,
	}
}

func NewEmbedRes(vector []float32, modelVersion string) *EmbedRes {
	return &EmbedRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultChunkWords — размер фрагмента описания продукта в словах.
const DefaultChunkWords = 250

// embeddingNamespace фиксирует пространство имён id точек: один и тот же
// фрагмент продукта всегда получает один и тот же id.
var embeddingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("marketplace/product-embeddings"))

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет эмбеддинг одного фрагмента текста продукта
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(productID int64, chunk int, text string, modelVersion string) Payload {
	return Payload{
		"product_id":    productID,
		"chunk":         int64(chunk),
		"text":          text,
		"created_at":    time.Now().UTC().UnixNano(),
		"model_version": modelVersion,
	}
}

// EmbeddingID детерминированный UUID фрагмента chunk продукта productID.
func EmbeddingID(productID int64, chunk int) string {
	name := strconv.FormatInt(productID, 10) + ":" + strconv.Itoa(chunk)
	return uuid.NewSHA1(embeddingNamespace, []byte(name)).String()
}

// ScoredChunk — найденный фрагмент и его сходство с запросом.
type ScoredChunk struct {
	ProductID int64
	Text      string
	Score     float32
}

// SearchHit — продукт из результатов семантического поиска.
// Snippet — наиболее похожий на запрос фрагмент.
type SearchHit struct {
	Product Product
	Score   float32
	Snippet string
}

// ProductDocument собирает индексируемый текст продукта.
func ProductDocument(p Product) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{p.Name, p.Category, p.Description} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, "\n")
}

// ChunkText делит текст на фрагменты не длиннее maxWords слов.
// Пробелы нормализуются, пустой текст фрагментов не даёт.
func ChunkText(text string, maxWords int) []string {
	if maxWords <= 0 {
		maxWords = DefaultChunkWords
	}

	words := strings.Fields(text)
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for i := 0; i < len(words); i += maxWords {
		end := min(i+maxWords, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}

	return chunks
}

package infrastructure

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/DRSN-tech/marketplace/pkg/e"
)

// GetExtensionFromMIME возвращает расширение файла по MIME-типу изображения.
// Поддерживает jpeg, jpg, png, webp, gif. Возвращает ошибку e.ErrUnsupportedMediaType для неподдерживаемых типов.
func GetExtensionFromMIME(mime string) (string, error) {
	switch mime {
	case "image/jpeg", "image/jpg":
		return "jpg", nil
	case "image/png":
		return "png", nil
	case "image/webp":
		return "webp", nil
	case "image/gif":
		return "gif", nil
	default:
		return "bin", e.ErrUnsupportedMediaType
	}
}

// ContentKey возвращает ключ объекта, зависящий только от содержимого:
// повторный импорт того же файла не создаёт новый объект.
func ContentKey(prefix string, data []byte, ext string) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:]) + "." + ext
}

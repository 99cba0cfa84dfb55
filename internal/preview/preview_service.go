package preview

import (
	"fmt"

	"github.com/h2non/bimg"
)

const (
	maxThumbnailSize = 1024 // максимальный размер превью в пикселях
)

// Service нормализует изображения превью: ограничивает размер и приводит
// к PNG независимо от исходного формата.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Normalize уменьшает изображение до maxThumbnailSize по большей стороне
// с сохранением пропорций и перекодирует в PNG.
func (s *Service) Normalize(data []byte) ([]byte, error) {
	image := bimg.NewImage(data)

	size, err := image.Size()
	if err != nil {
		return nil, fmt.Errorf("failed to get image size: %w", err)
	}

	width, height := size.Width, size.Height
	if width > maxThumbnailSize || height > maxThumbnailSize {
		width, height = calculateNewDimensions(width, height, maxThumbnailSize)
	}

	processed, err := image.Process(bimg.Options{
		Width:  width,
		Height: height,
		Type:   bimg.PNG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to process image: %w", err)
	}

	return processed, nil
}

// calculateNewDimensions вычисляет новые размеры с сохранением пропорций
func calculateNewDimensions(width, height, maxSize int) (newWidth, newHeight int) {
	if width > height {
		newWidth = maxSize
		newHeight = (height * maxSize) / width
	} else {
		newHeight = maxSize
		newWidth = (width * maxSize) / height
	}
	return
}

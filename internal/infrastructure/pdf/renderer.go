package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/port"
)

// ErrNoPages is returned for documents MuPDF opens but finds empty
var ErrNoPages = errors.New("pdf has no pages")

const (
	defaultDPI     = 150
	defaultQuality = 85
)

// Renderer inspects uploaded PDFs and rasterises their pages with MuPDF
type Renderer struct {
	dpi     float64
	quality int
	logger  *zap.Logger
}

// NewRenderer creates a renderer. A non-positive dpi uses the default.
func NewRenderer(dpi float64, logger *zap.Logger) *Renderer {
	if dpi <= 0 {
		dpi = defaultDPI
	}
	return &Renderer{
		dpi:     dpi,
		quality: defaultQuality,
		logger:  logger,
	}
}

// PageCount opens the document and returns its number of pages
func (r *Renderer) PageCount(data []byte) (int, error) {
	doc, err := open(data)
	if err != nil {
		return 0, err
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return 0, ErrNoPages
	}
	return n, nil
}

// RenderJPEG converts up to maxPages pages to JPEG images.
// A page that fails to render is skipped; no rendered page at all is an error.
func (r *Renderer) RenderJPEG(data []byte, maxPages int) ([][]byte, error) {
	doc, err := open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if maxPages > 0 && pageCount > maxPages {
		pageCount = maxPages
	}

	images := make([][]byte, 0, pageCount)
	for page := 0; page < pageCount; page++ {
		img, err := doc.ImageDPI(page, r.dpi)
		if err != nil {
			r.logger.Warn("Failed to render page", zap.Int("page", page), zap.Error(err))
			continue
		}

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: r.quality}); err != nil {
			r.logger.Warn("Failed to encode page to JPEG", zap.Int("page", page), zap.Error(err))
			continue
		}
		images = append(images, buf.Bytes())
	}

	if len(images) == 0 {
		return nil, ErrNoPages
	}
	r.logger.Debug("Rendered PDF pages", zap.Int("pages", len(images)))
	return images, nil
}

func open(data []byte) (*fitz.Document, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return doc, nil
}

var _ port.PDFInspector = (*Renderer)(nil)

package services

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

type PDFService struct {
	log *zap.Logger
}

func NewPDFService(log *zap.Logger) *PDFService {
	return &PDFService{log: log.Named("pdf")}
}

// ExtractText concatenates the plain text of every page, one "\n" after each page that
// produced text. Pages that fail to extract are skipped.
func (s *PDFService) ExtractText(path string) (text string, err error) {
	if _, statErr := os.Stat(path); statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("stat pdf: %w", statErr)
	}

	// The pdf package panics on some malformed object graphs.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var builder strings.Builder
	numPages := r.NumPage()
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			s.log.Warn("skipping page", zap.String("path", path), zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		if pageText == "" {
			continue
		}
		builder.WriteString(pageText)
		builder.WriteString("\n")
	}

	s.log.Debug("extracted text", zap.String("path", path), zap.Int("pages", numPages), zap.Int("chars", builder.Len()))
	return builder.String(), nil
}

// PageCount parses an in-memory PDF and returns its number of pages. It doubles as the
// upload check that the bytes really are a PDF.
func (s *PDFService) PageCount(data []byte) (pages int, err error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return 0, errors.New("file is not a PDF")
	}

	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	pages = r.NumPage()
	if pages == 0 {
		return 0, errors.New("pdf has no pages")
	}
	return pages, nil
}

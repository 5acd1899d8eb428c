package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"quiz-ai/internal/models"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrUploadTooLarge   = errors.New("uploaded file is too large")
	ErrNotPDF           = errors.New("only PDF files are supported")
)

// DocumentService keeps each session's uploaded PDF until the session replaces or drops it.
type DocumentService struct {
	db       *sql.DB
	pdf      *PDFService
	maxBytes int64
}

func NewDocumentService(db *sql.DB, pdf *PDFService, maxBytes int64) *DocumentService {
	return &DocumentService{db: db, pdf: pdf, maxBytes: maxBytes}
}

// Create stores src as the session's document, replacing any earlier upload.
func (s *DocumentService) Create(ctx context.Context, sessionID, original string, src io.Reader) (*models.Document, error) {
	if !strings.EqualFold(filepath.Ext(original), ".pdf") {
		return nil, ErrNotPDF
	}

	data, err := io.ReadAll(io.LimitReader(src, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, ErrUploadTooLarge
	}

	pages, err := s.pdf.PageCount(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotPDF, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ?;`, sessionID); err != nil {
		return nil, fmt.Errorf("delete previous documents: %w", err)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO documents (session_id, original_name, page_count, size, content, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?);
	`, sessionID, original, pages, len(data), data, now)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	id, _ := res.LastInsertId()

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit document: %w", err)
	}

	return &models.Document{
		ID:           id,
		SessionID:    sessionID,
		OriginalName: original,
		PageCount:    pages,
		Size:         int64(len(data)),
		Content:      data,
		UploadedAt:   now,
	}, nil
}

// Get loads a document, scoped to the session that uploaded it.
func (s *DocumentService) Get(ctx context.Context, sessionID string, id int64) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, original_name, page_count, size, content, uploaded_at
		FROM documents WHERE id = ? AND session_id = ?;
	`, id, sessionID)
	var doc models.Document
	if err := row.Scan(
		&doc.ID,
		&doc.SessionID,
		&doc.OriginalName,
		&doc.PageCount,
		&doc.Size,
		&doc.Content,
		&doc.UploadedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentService) DeleteForSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE session_id = ?;`, sessionID); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// Package fsdoc loads raw documents from a directory of already-extracted
// invoice text. The engine never decodes PDFs itself; an upstream collaborator
// writes one <id>.txt per document, optionally with an <id>.json sidecar
// carrying metadata captured at upload time.
package fsdoc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"invoice-recon/internal/core"
)

// Metadata is the optional sidecar for one document.
type Metadata struct {
	InvoiceNumber string `json:"invoice_number"`
	// OrderDate is the explicit date captured at upload, YYYY-MM-DD.
	// Absent means unknown; the engine never invents one.
	OrderDate  string     `json:"order_date,omitempty"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

var invoiceNumberRe = regexp.MustCompile(`\d{9,10}`)

// LoadDirectory reads every .txt document in dir, sorted by filename so the
// ingestion order is stable. An unreadable directory is a structural failure;
// an empty or missing text body for a single document is a normal degraded
// input and is passed through as-is.
func LoadDirectory(dir string) ([]core.RawDocument, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read document directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	docs := make([]core.RawDocument, 0, len(names))
	for _, name := range names {
		doc, err := loadOne(dir, name)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func loadOne(dir, name string) (core.RawDocument, error) {
	path := filepath.Join(dir, name)
	text, err := os.ReadFile(path)
	if err != nil {
		return core.RawDocument{}, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	id := strings.TrimSuffix(name, ".txt")
	doc := core.RawDocument{
		DocumentID: id,
		RawText:    string(text),
	}

	meta, err := readSidecar(filepath.Join(dir, id+".json"))
	if err != nil {
		return core.RawDocument{}, err
	}
	if meta != nil {
		doc.InvoiceNumber = meta.InvoiceNumber
		if meta.OrderDate != "" {
			d, err := time.Parse("2006-01-02", meta.OrderDate)
			if err != nil {
				return core.RawDocument{}, fmt.Errorf("invalid order_date in sidecar for %s: %w", id, err)
			}
			doc.OrderDate = &d
		}
		if meta.UploadedAt != nil {
			doc.UploadTimestamp = *meta.UploadedAt
		}
	}

	if doc.InvoiceNumber == "" {
		// Filenames usually carry the invoice number.
		doc.InvoiceNumber = invoiceNumberRe.FindString(id)
	}
	if doc.UploadTimestamp.IsZero() {
		if info, err := os.Stat(path); err == nil {
			doc.UploadTimestamp = info.ModTime()
		}
	}

	return doc, nil
}

func readSidecar(path string) (*Metadata, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sidecar %s: %w", path, err)
	}
	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("invalid sidecar %s: %w", path, err)
	}
	return &meta, nil
}

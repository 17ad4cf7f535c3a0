package extract

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"studyrag/internal/filestore"
	"studyrag/internal/util"

	"github.com/ledongthuc/pdf"
)

type Page struct {
	Number int
	Text   string
}

// Source is an opened document whose pages can be decoded one at a time.
type Source interface {
	PageCount() int
	PageText(n int) (string, error)
	Close() error
}

type Opener interface {
	Open(ctx context.Context, location string) (Source, error)
}

// PageError reports a page that could not be decoded. It never aborts a run.
type PageError struct {
	Page int
	Err  error
}

func (e *PageError) Error() string { return fmt.Sprintf("extract page %d: %v", e.Page, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// Pages lazily yields pages first..last (1-based, inclusive) in order. Decode
// failures are yielded as *PageError; pages without text are skipped.
func Pages(ctx context.Context, src Source, first, last int, logger *slog.Logger) iter.Seq2[Page, error] {
	if logger == nil {
		logger = slog.Default()
	}
	if first < 1 {
		first = 1
	}
	if n := src.PageCount(); last > n {
		last = n
	}
	return func(yield func(Page, error) bool) {
		for n := first; n <= last; n++ {
			if err := ctx.Err(); err != nil {
				yield(Page{Number: n}, err)
				return
			}
			text, err := src.PageText(n)
			if err != nil {
				if !yield(Page{Number: n}, &PageError{Page: n, Err: err}) {
					return
				}
				continue
			}
			text = strings.TrimSpace(util.SanitizeText(text))
			if text == "" {
				logger.Info("skipping page without text", "page", n)
				continue
			}
			if !yield(Page{Number: n, Text: text}, nil) {
				return
			}
		}
	}
}

type PDFOpener struct {
	store filestore.Store
}

func NewPDFOpener(store filestore.Store) *PDFOpener {
	return &PDFOpener{store: store}
}

func (o *PDFOpener) Open(ctx context.Context, location string) (Source, error) {
	obj, err := o.store.Open(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSourceUnavailable, err)
	}
	r, err := newPDFReader(obj)
	if err != nil {
		_ = obj.Close()
		return nil, fmt.Errorf("%w: read pdf: %v", util.ErrSourceUnavailable, err)
	}
	return &pdfSource{obj: obj, r: r}, nil
}

// newPDFReader guards against decoder panics on malformed trailers.
func newPDFReader(obj filestore.Object) (r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("malformed pdf: %v", p)
		}
	}()
	return pdf.NewReader(obj, obj.Size())
}

type pdfSource struct {
	obj filestore.Object
	r   *pdf.Reader
}

func (s *pdfSource) PageCount() int { return s.r.NumPage() }

func (s *pdfSource) PageText(n int) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("decode page: %v", p)
		}
	}()
	if n < 1 || n > s.r.NumPage() {
		return "", fmt.Errorf("page %d out of range", n)
	}
	page := s.r.Page(n)
	if page.V.IsNull() {
		return "", errors.New("page object missing")
	}
	return page.GetPlainText(nil)
}

func (s *pdfSource) Close() error { return s.obj.Close() }

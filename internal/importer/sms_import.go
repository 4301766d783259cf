// Package importer ingests SMS Backup & Restore XML exports into the store.
package importer

import (
	"context"
	"database/sql"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/retext/retext/internal/store"
)

var (
	// ErrParse marks a malformed backup file. Terminal for the import run;
	// batches committed before the failure remain durable.
	ErrParse = errors.New("malformed backup file")

	// ErrIO marks an unreadable backup file.
	ErrIO = errors.New("backup file unreadable")
)

const defaultBatchSize = 1000

// Inserter is the store surface the importer needs. *store.Store satisfies it.
type Inserter interface {
	InsertBatch(batch []*store.Message) (inserted, duplicates int, err error)
}

// Options controls an import run.
type Options struct {
	// BatchSize is the number of records committed per transaction.
	// Defaults to 1000.
	BatchSize int

	// Strict turns per-record problems (missing address/body, unparseable
	// date/type) into errors. The default is to skip such records silently,
	// which is the right call for noisy real-world exports.
	Strict bool

	// Progress, if non-nil, is invoked after each batch commit with the
	// running processed count, the total found in the counting pass, and the
	// percentage complete.
	Progress func(processed, total int64, pct float64)

	// Logger is optional; defaults to slog.Default().
	Logger *slog.Logger
}

// Summary reports the outcome of an import run.
type Summary struct {
	Imported   int64
	Duplicates int64
	Skipped    int64
	Total      int64
}

// Import streams an SMS backup XML file into the store in batches.
//
// The file is parsed element by element and never materialized whole, so peak
// memory is bounded by the batch size regardless of file size. Each batch
// commits in one store transaction; committed batches survive any later
// failure. Importing the same file twice is idempotent: every record from the
// first run is reported as a duplicate on the second.
func Import(ctx context.Context, st Inserter, path string, opts Options) (*Summary, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	summary := &Summary{}

	total, err := countMessages(path)
	if err != nil {
		return summary, err
	}
	summary.Total = total
	log.Info("counted backup entries", "file", path, "total", total)

	f, err := os.Open(path)
	if err != nil {
		return summary, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	batch := make([]*store.Message, 0, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		inserted, duplicates, err := st.InsertBatch(batch)
		if err != nil {
			return fmt.Errorf("commit batch: %w", err)
		}
		summary.Imported += int64(inserted)
		summary.Duplicates += int64(duplicates)
		batch = batch[:0]

		if opts.Progress != nil {
			processed := summary.Imported + summary.Duplicates
			pct := 0.0
			if total > 0 {
				pct = float64(processed) / float64(total) * 100
			}
			opts.Progress(processed, total, pct)
		}
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			// Commit what we have; the rest resumes cleanly later because
			// deduplication is keyed by fingerprint.
			if ferr := flush(); ferr != nil {
				return summary, ferr
			}
			return summary, err
		}

		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Mid-stream corruption: committed batches stay committed, the
			// in-memory batch is abandoned, and the caller gets the counts
			// accumulated so far.
			return summary, fmt.Errorf("%w: %v", ErrParse, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "sms" {
			continue
		}

		msg, err := messageFromElement(start)
		if err != nil {
			if opts.Strict {
				return summary, err
			}
			summary.Skipped++
			if err := dec.Skip(); err != nil && err != io.EOF {
				return summary, fmt.Errorf("%w: %v", ErrParse, err)
			}
			continue
		}

		batch = append(batch, msg)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return summary, err
			}
		}

		// Discard the element's children; only attributes matter.
		if err := dec.Skip(); err != nil && err != io.EOF {
			return summary, fmt.Errorf("%w: %v", ErrParse, err)
		}
	}

	if err := flush(); err != nil {
		return summary, err
	}
	return summary, nil
}

// messageFromElement extracts one message from an <sms> element's attributes.
// A missing address or body, or an unparseable date or type, is reported as
// an error; the caller decides whether that skips the record or aborts.
func messageFromElement(start xml.StartElement) (*store.Message, error) {
	var address, body, dateStr, typeStr string
	var contactName sql.NullString

	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "address":
			address = attr.Value
		case "body":
			body = attr.Value
		case "date":
			dateStr = attr.Value
		case "type":
			typeStr = attr.Value
		case "contact_name":
			contactName = sql.NullString{String: attr.Value, Valid: true}
		}
	}

	if address == "" || body == "" {
		return nil, fmt.Errorf("missing address or body")
	}

	timestamp, err := strconv.ParseInt(dateStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad date %q: %w", dateStr, err)
	}
	msgType, err := strconv.Atoi(typeStr)
	if err != nil {
		return nil, fmt.Errorf("bad type %q: %w", typeStr, err)
	}

	return &store.Message{
		Address:     address,
		ContactName: contactName,
		Body:        body,
		Timestamp:   timestamp,
		MessageType: msgType,
		Fingerprint: Fingerprint(timestamp, address, body),
	}, nil
}

// countMessages streams through the file once to count <sms> elements so
// progress output can show percentages.
func countMessages(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer f.Close()

	dec := xml.NewDecoder(f)
	var count int64
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrParse, err)
		}
		if start, ok := tok.(xml.StartElement); ok && start.Name.Local == "sms" {
			count++
		}
	}
}

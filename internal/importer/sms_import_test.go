package importer_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/retext/retext/internal/importer"
	"github.com/retext/retext/internal/store"
	"github.com/retext/retext/internal/testutil"
)

func writeBackup(t *testing.T, entries ...string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<smses count="%d">`+"\n", len(entries))
	for _, e := range entries {
		b.WriteString(e + "\n")
	}
	b.WriteString("</smses>\n")

	path := filepath.Join(t.TempDir(), "backup.xml")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatalf("write backup: %v", err)
	}
	return path
}

func smsEntry(address, body string, date int64, contactName string) string {
	attrs := fmt.Sprintf(`address=%q date="%d" type="1" body=%q`, address, date, body)
	if contactName != "" {
		attrs += fmt.Sprintf(` contact_name=%q`, contactName)
	}
	return "  <sms " + attrs + " />"
}

func TestImportThreeEntries(t *testing.T) {
	st := testutil.NewTestStore(t)
	path := writeBackup(t,
		smsEntry("+15550001", "see you at the party", 1700000001000, "Alice"),
		smsEntry("+15550002", "running late", 1700000002000, ""),
		smsEntry("+15550003", "on my way", 1700000003000, "Bob"),
	)

	summary, err := importer.Import(context.Background(), st, path, importer.Options{})
	testutil.MustNoErr(t, err, "Import")
	if summary.Imported != 3 || summary.Duplicates != 0 || summary.Skipped != 0 {
		t.Errorf("summary = %+v, want 3 imported, 0 duplicates, 0 skipped", summary)
	}

	count, err := st.CountMessages()
	testutil.MustNoErr(t, err, "CountMessages")
	if count != 3 {
		t.Errorf("stored count = %d, want 3", count)
	}

	// The entry without contact_name stores a NULL, not an empty string.
	var withName int64
	err = st.DB().QueryRow("SELECT COUNT(*) FROM messages WHERE contact_name IS NOT NULL").Scan(&withName)
	testutil.MustNoErr(t, err, "count named")
	if withName != 2 {
		t.Errorf("records with contact_name = %d, want 2", withName)
	}
}

func TestImportIdempotent(t *testing.T) {
	st := testutil.NewTestStore(t)
	path := writeBackup(t,
		smsEntry("+15550001", "first", 1000, ""),
		smsEntry("+15550002", "second", 2000, ""),
	)

	first, err := importer.Import(context.Background(), st, path, importer.Options{})
	testutil.MustNoErr(t, err, "first import")
	if first.Imported != 2 {
		t.Fatalf("first run imported %d, want 2", first.Imported)
	}

	second, err := importer.Import(context.Background(), st, path, importer.Options{})
	testutil.MustNoErr(t, err, "second import")
	if second.Imported != 0 || second.Duplicates != 2 {
		t.Errorf("second run = %+v, want 0 imported, 2 duplicates", second)
	}

	count, err := st.CountMessages()
	testutil.MustNoErr(t, err, "CountMessages")
	if count != 2 {
		t.Errorf("stored count after double import = %d, want 2", count)
	}
}

func TestImportSkipsInvalidRecords(t *testing.T) {
	st := testutil.NewTestStore(t)
	path := writeBackup(t,
		smsEntry("+15550001", "good", 1000, ""),
		`  <sms date="2000" type="1" body="no address" />`,
		`  <sms address="+15550003" date="3000" type="1" />`,
		`  <sms address="+15550004" date="not-a-number" type="1" body="bad date" />`,
		`  <sms address="+15550005" date="5000" type="urgent" body="bad type" />`,
		smsEntry("+15550006", "also good", 6000, ""),
	)

	summary, err := importer.Import(context.Background(), st, path, importer.Options{})
	testutil.MustNoErr(t, err, "Import")
	if summary.Imported != 2 || summary.Skipped != 4 {
		t.Errorf("summary = %+v, want 2 imported, 4 skipped", summary)
	}
}

func TestImportStrictFailsOnInvalidRecord(t *testing.T) {
	st := testutil.NewTestStore(t)
	path := writeBackup(t,
		`  <sms date="2000" type="1" body="no address" />`,
	)

	_, err := importer.Import(context.Background(), st, path, importer.Options{Strict: true})
	if err == nil {
		t.Fatal("strict import of an invalid record succeeded, want error")
	}
}

func TestImportMalformedXML(t *testing.T) {
	st := testutil.NewTestStore(t)
	path := filepath.Join(t.TempDir(), "bad.xml")
	if err := os.WriteFile(path, []byte("<smses><sms address="), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	summary, err := importer.Import(context.Background(), st, path, importer.Options{})
	if !errors.Is(err, importer.ErrParse) {
		t.Fatalf("err = %v, want ErrParse", err)
	}
	if summary.Imported != 0 || summary.Duplicates != 0 {
		t.Errorf("summary = %+v, want zero counts", summary)
	}
}

func TestImportMissingFile(t *testing.T) {
	st := testutil.NewTestStore(t)
	_, err := importer.Import(context.Background(), st, filepath.Join(t.TempDir(), "nope.xml"), importer.Options{})
	if !errors.Is(err, importer.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
}

// recordingInserter counts flushes without a database, so batch behavior is
// observable directly.
type recordingInserter struct {
	batches   []int
	failAfter int // fail on the Nth call when > 0
	calls     int
}

func (r *recordingInserter) InsertBatch(batch []*store.Message) (int, int, error) {
	r.calls++
	if r.failAfter > 0 && r.calls >= r.failAfter {
		return 0, 0, errors.New("disk full")
	}
	r.batches = append(r.batches, len(batch))
	return len(batch), 0, nil
}

func TestImportBoundedBatches(t *testing.T) {
	entries := make([]string, 25)
	for i := range entries {
		entries[i] = smsEntry(fmt.Sprintf("+1555%04d", i), fmt.Sprintf("msg %d", i), int64(i+1), "")
	}
	path := writeBackup(t, entries...)

	rec := &recordingInserter{}
	var progressCalls int
	summary, err := importer.Import(context.Background(), rec, path, importer.Options{
		BatchSize: 10,
		Progress: func(processed, total int64, pct float64) {
			progressCalls++
			if total != 25 {
				t.Errorf("progress total = %d, want 25", total)
			}
		},
	})
	testutil.MustNoErr(t, err, "Import")

	// Peak in-memory batch never exceeds the batch size, regardless of the
	// number of records in the file.
	testutil.AssertEqualSlices(t, rec.batches, 10, 10, 5)
	if summary.Imported != 25 {
		t.Errorf("imported = %d, want 25", summary.Imported)
	}
	if progressCalls != 3 {
		t.Errorf("progress called %d times, want 3", progressCalls)
	}
}

func TestImportPreservesCommittedBatchesOnFailure(t *testing.T) {
	entries := make([]string, 12)
	for i := range entries {
		entries[i] = smsEntry(fmt.Sprintf("+1555%04d", i), fmt.Sprintf("msg %d", i), int64(i+1), "")
	}
	path := writeBackup(t, entries...)

	rec := &recordingInserter{failAfter: 2}
	summary, err := importer.Import(context.Background(), rec, path, importer.Options{BatchSize: 5})
	if err == nil {
		t.Fatal("expected error from failing store")
	}
	// The first batch committed and its counts are reported.
	if summary.Imported != 5 {
		t.Errorf("imported = %d, want 5 from the committed batch", summary.Imported)
	}
}

func TestImportCancellation(t *testing.T) {
	entries := make([]string, 8)
	for i := range entries {
		entries[i] = smsEntry(fmt.Sprintf("+1555%04d", i), fmt.Sprintf("msg %d", i), int64(i+1), "")
	}
	path := writeBackup(t, entries...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recordingInserter{}
	_, err := importer.Import(ctx, rec, path, importer.Options{BatchSize: 3})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

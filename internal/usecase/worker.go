package usecase

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"
	"time"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
	"hospitalsync/internal/domain/header"
)

// maxHeaderBytes bounds the header row; the reader buffer is sized to hold it
const maxHeaderBytes = 1 << 20

var (
	errTooLarge = errors.New("response exceeds size limit")
	errBareCR   = errors.New("bare CR line endings are not supported")
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}

	// separators recognised in a header row, in tie-break order
	delimiterCandidates = []byte{',', ';', '\t', '|'}
)

// WorkerOptions tune the fetch-and-transform step. Delimiter is used when the
// header row contains none of the recognised separators, and wins ties.
type WorkerOptions struct {
	Bucket       string
	MaxBytes     int64
	Delimiter    rune
	Disambiguate bool
}

// Result is the outcome of processing one dataset. Err is nil on success.
type Result struct {
	Descriptor domain.DatasetDescriptor
	OutputKey  string
	Bytes      int64
	Checksum   string
	Columns    []string
	Duration   time.Duration
	Err        error
}

// OK reports whether the dataset was stored
func (r Result) OK() bool {
	return r.Err == nil
}

// FetchTransformWorker downloads one CSV, rewrites its header row and
// streams the rest of the file unchanged into storage. It never touches the
// run metadata store.
type FetchTransformWorker struct {
	http    ports.HTTPClient
	storage ports.Storage
	opts    WorkerOptions
	logger  ports.Logger
	metrics ports.Metrics
}

func NewFetchTransformWorker(http ports.HTTPClient, storage ports.Storage, opts WorkerOptions, logger ports.Logger, metrics ports.Metrics) *FetchTransformWorker {
	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	return &FetchTransformWorker{
		http:    http,
		storage: storage,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// Process runs the download, transform and store steps for d
func (w *FetchTransformWorker) Process(ctx context.Context, d domain.DatasetDescriptor) Result {
	start := time.Now()
	logger := w.logger.WithFields(map[string]interface{}{"dataset_id": d.Identifier})

	res := w.process(ctx, d)
	res.Descriptor = d
	res.Duration = time.Since(start)

	if res.Err != nil {
		kind := string(domain.KindOf(res.Err))
		logger.Error("Dataset failed", "error", res.Err, "kind", kind, "url", d.DownloadURL)
		w.metrics.IncrementCounter("datasets.processed", map[string]string{"status": "failure", "kind": kind})
		return res
	}

	logger.Info("Dataset stored",
		"key", res.OutputKey,
		"bytes", res.Bytes,
		"columns", len(res.Columns),
		"duration_ms", res.Duration.Milliseconds())
	w.metrics.IncrementCounter("datasets.processed", map[string]string{"status": "success", "kind": ""})
	w.metrics.RecordHistogram("dataset.bytes", float64(res.Bytes), nil)
	w.metrics.RecordHistogram("dataset.duration_seconds", res.Duration.Seconds(), nil)

	return res
}

func (w *FetchTransformWorker) process(ctx context.Context, d domain.DatasetDescriptor) Result {
	key := domain.OutputKey(d.Identifier)

	body, headers, err := w.http.Download(ctx, d.DownloadURL, map[string]string{"Accept": "text/csv"})
	if err != nil {
		return Result{Err: domain.NetworkError("download", d.Identifier, err)}
	}
	defer body.Close()

	if ct := strings.ToLower(headers["Content-Type"]); strings.Contains(ct, "html") || strings.Contains(ct, "json") {
		return Result{Err: domain.FormatError("download", d.Identifier, fmt.Errorf("unexpected content type %q", ct))}
	}

	src := &sourceReader{r: body, limited: w.opts.MaxBytes > 0, remaining: w.opts.MaxBytes}
	br := bufio.NewReaderSize(src, maxHeaderBytes)

	head, err := w.readHeader(br)
	if err != nil {
		if src.err != nil && !errors.Is(src.err, io.EOF) {
			return Result{Err: w.sourceError(d.Identifier, src.err)}
		}
		return Result{Err: domain.FormatError("read header", d.Identifier, err)}
	}

	out, err := w.encodeHeader(head)
	if err != nil {
		return Result{Err: domain.FormatError("write header", d.Identifier, err)}
	}

	hasher := sha256.New()
	counted := &countingReader{r: io.TeeReader(io.MultiReader(bytes.NewReader(out), br), hasher)}

	meta := ports.ObjectMetadata{
		ContentType: "text/csv",
		UserMetadata: map[string]string{
			"dataset-id":  d.Identifier,
			"modified-at": d.ModifiedAt.UTC().Format(time.RFC3339),
		},
	}

	if err := w.storage.Put(ctx, w.opts.Bucket, key, counted, meta); err != nil {
		if src.err != nil && !errors.Is(src.err, io.EOF) {
			return Result{Err: w.sourceError(d.Identifier, src.err)}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{Err: domain.NetworkError("download", d.Identifier, ctxErr)}
		}
		return Result{Err: domain.IOError("store", d.Identifier, err)}
	}

	return Result{
		OutputKey: key,
		Bytes:     counted.n,
		Checksum:  hexSum(hasher),
		Columns:   head.columns,
	}
}

func (w *FetchTransformWorker) sourceError(id string, err error) error {
	if errors.Is(err, errTooLarge) {
		return domain.FormatError("download", id, fmt.Errorf("%w (%d bytes)", err, w.opts.MaxBytes))
	}
	return domain.NetworkError("download", id, err)
}

// parsedHeader is the normalized header row plus the delimiter and line
// terminator the source used for it
type parsedHeader struct {
	columns    []string
	comma      rune
	terminator string
}

// readHeader consumes the first CSV record from br, quote-aware, and leaves br
// positioned at the first data byte
func (w *FetchTransformWorker) readHeader(br *bufio.Reader) (*parsedHeader, error) {
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	peeked, err := br.Peek(maxHeaderBytes)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, err
	}
	atEOF := err != nil
	if len(bytes.TrimSpace(peeked)) == 0 {
		return nil, errors.New("empty response")
	}
	if looksLikeHTML(peeked) {
		return nil, errors.New("response is HTML, not CSV")
	}

	line, err := scanHeaderLine(peeked, atEOF, w.opts.Delimiter)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(peeked[:line.end]))
	r.Comma = line.comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("invalid header row: %w", err)
	}

	if _, err := br.Discard(line.end + len(line.terminator)); err != nil {
		return nil, err
	}

	columns := header.NormalizeAll(record)
	if w.opts.Disambiguate {
		columns = header.Disambiguate(columns)
	}

	return &parsedHeader{columns: columns, comma: line.comma, terminator: line.terminator}, nil
}

// encodeHeader writes the columns with the source delimiter and ends them with
// exactly the terminator the source header had
func (w *FetchTransformWorker) encodeHeader(h *parsedHeader) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.Comma = h.comma

	if err := cw.Write(h.columns); err != nil {
		return nil, err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return nil, err
	}

	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return append(out, h.terminator...), nil
}

type headerLine struct {
	end        int
	terminator string
	comma      rune
}

// scanHeaderLine finds where the first record of b ends and which separator
// it uses. Quotes only open at the start of a field; newlines inside quoted
// fields belong to the record. Without a terminator the record must run to EOF.
func scanHeaderLine(b []byte, atEOF bool, fallback rune) (headerLine, error) {
	var counts [256]int
	inQuotes, fieldStart := false, true

	for i := 0; i < len(b); i++ {
		c := b[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(b) && b[i+1] == '"' {
					i++
					continue
				}
				inQuotes = false
			}
			continue
		}

		switch {
		case c == '"' && fieldStart:
			inQuotes = true
			fieldStart = false
		case c == '\n':
			return headerLine{end: i, terminator: "\n", comma: pickDelimiter(&counts, fallback)}, nil
		case c == '\r':
			if i+1 < len(b) && b[i+1] == '\n' {
				return headerLine{end: i, terminator: "\r\n", comma: pickDelimiter(&counts, fallback)}, nil
			}
			if i+1 == len(b) && !atEOF {
				return headerLine{}, fmt.Errorf("header row longer than %d bytes", maxHeaderBytes)
			}
			return headerLine{}, errBareCR
		case isDelimiterCandidate(c) || rune(c) == fallback:
			counts[c]++
			fieldStart = true
		default:
			fieldStart = false
		}
	}

	if !atEOF {
		return headerLine{}, fmt.Errorf("header row longer than %d bytes", maxHeaderBytes)
	}
	return headerLine{end: len(b), comma: pickDelimiter(&counts, fallback)}, nil
}

// pickDelimiter returns the most frequent separator, preferring fallback on a
// tie and when no separator was seen at all
func pickDelimiter(counts *[256]int, fallback rune) rune {
	best, bestN := fallback, 0
	if fallback >= 0 && fallback < 256 {
		bestN = counts[fallback]
	}
	for _, c := range delimiterCandidates {
		if counts[c] > bestN {
			best, bestN = rune(c), counts[c]
		}
	}
	return best
}

func isDelimiterCandidate(c byte) bool {
	return bytes.IndexByte(delimiterCandidates, c) >= 0
}

func looksLikeHTML(b []byte) bool {
	head := bytes.ToLower(bytes.TrimSpace(b))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) ||
		bytes.HasPrefix(head, []byte("<html")) ||
		bytes.HasPrefix(head, []byte("<?xml"))
}

func hexSum(h hash.Hash) string {
	return hex.EncodeToString(h.Sum(nil))
}

// sourceReader enforces the size limit and remembers the first error the
// download body returned, so a failed store can be blamed on the network
type sourceReader struct {
	r         io.Reader
	limited   bool
	remaining int64
	err       error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}

	if !s.limited {
		n, err := s.r.Read(p)
		if err != nil {
			s.err = err
		}
		return n, err
	}

	if s.remaining > 0 && int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	if s.remaining <= 0 {
		// at the limit: any further byte is an overflow
		var extra [1]byte
		n, err := s.r.Read(extra[:])
		if n > 0 {
			s.err = errTooLarge
			return 0, s.err
		}
		if err != nil {
			s.err = err
		}
		return 0, err
	}

	n, err := s.r.Read(p)
	s.remaining -= int64(n)
	if err != nil {
		s.err = err
	}
	return n, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hospitalsync/application/ports"
	"hospitalsync/infrastructure/storage/adapters/fs"
	"hospitalsync/internal/domain"
	"hospitalsync/mocks"
)

var csvAccept = map[string]string{"Accept": "text/csv"}

func descriptor(id, modified string) domain.DatasetDescriptor {
	ts, err := time.Parse(time.DateOnly, modified)
	if err != nil {
		panic(err)
	}
	return domain.DatasetDescriptor{
		Identifier:  id,
		Title:       "Dataset " + id,
		DownloadURL: "https://data.cms.gov/provider-data/sites/default/files/" + id + ".csv",
		ModifiedAt:  ts,
	}
}

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func newFSWorker(t *testing.T, httpClient ports.HTTPClient, opts WorkerOptions) (*FetchTransformWorker, string) {
	t.Helper()

	dir := t.TempDir()
	storage, err := fs.NewStorage(dir, mocks.NewNopLogger(), mocks.NewNopMetrics())
	require.NoError(t, err)

	if opts.Delimiter == 0 {
		opts.Delimiter = ','
	}
	w := NewFetchTransformWorker(httpClient, storage, opts, mocks.NewNopLogger(), mocks.NewNopMetrics())
	return w, dir
}

func readOutput(t *testing.T, dir, id string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, domain.OutputKey(id)))
	require.NoError(t, err)
	return string(raw)
}

// failingBody yields data and then fails, like a connection reset mid-download
type failingBody struct {
	r   io.Reader
	err error
}

func (f *failingBody) Read(p []byte) (int, error) {
	n, err := f.r.Read(p)
	if errors.Is(err, io.EOF) {
		return n, f.err
	}
	return n, err
}

func (f *failingBody) Close() error { return nil }

func TestFetchTransformWorker_NormalizesHeaderAndStreamsRows(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
		cols   []string
	}{
		{
			name:   "plain",
			source: "Facility ID,Facility Name,Patient's Rating (%)\n010001,SOUTHEAST HEALTH,4\n010005,\"MARSHALL, MEDICAL\",3\n",
			want:   "facility_id,facility_name,patients_rating\n010001,SOUTHEAST HEALTH,4\n010005,\"MARSHALL, MEDICAL\",3\n",
			cols:   []string{"facility_id", "facility_name", "patients_rating"},
		},
		{
			name:   "crlf line endings are kept",
			source: "State,County/Parish\r\nAL,Houston\r\nAK,Anchorage\r\n",
			want:   "state,county_parish\r\nAL,Houston\r\nAK,Anchorage\r\n",
			cols:   []string{"state", "county_parish"},
		},
		{
			name:   "byte order mark is dropped",
			source: "\xEF\xBB\xBFFacility ID,Score\n1,2\n",
			want:   "facility_id,score\n1,2\n",
			cols:   []string{"facility_id", "score"},
		},
		{
			name:   "quoted header with embedded newline",
			source: "\"Measure\nName\",\"Start Date\"\nREADM_30,01/01/2024\n",
			want:   "measure_name,start_date\nREADM_30,01/01/2024\n",
			cols:   []string{"measure_name", "start_date"},
		},
		{
			name:   "duplicate and empty columns are disambiguated",
			source: "Score,score,\n1,2,3\n",
			want:   "score,score_2,column_3\n1,2,3\n",
			cols:   []string{"score", "score_2", "column_3"},
		},
		{
			name:   "header only",
			source: "Facility ID\n",
			want:   "facility_id\n",
			cols:   []string{"facility_id"},
		},
		{
			name:   "header only without trailing newline",
			source: "A b,C'd",
			want:   "a_b,cd",
			cols:   []string{"a_b", "cd"},
		},
		{
			name:   "semicolon separated",
			source: "A;B\n1;2\n",
			want:   "a;b\n1;2\n",
			cols:   []string{"a", "b"},
		},
		{
			name:   "tab separated",
			source: "Facility ID\tCity/Town\r\n1\tDothan\r\n",
			want:   "facility_id\tcity_town\r\n1\tDothan\r\n",
			cols:   []string{"facility_id", "city_town"},
		},
		{
			name:   "pipe separated",
			source: "Facility ID|Score\n1|2\n",
			want:   "facility_id|score\n1|2\n",
			cols:   []string{"facility_id", "score"},
		},
		{
			name:   "separators inside quotes are not counted",
			source: "\"City, State, Zip\";County\nDothan, AL, 36301;Houston\n",
			want:   "city_state_zip;county\nDothan, AL, 36301;Houston\n",
			cols:   []string{"city_state_zip", "county"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptor("xubh-q36u", "2024-05-01")

			httpClient := &mocks.MockHTTPClient{}
			httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
				Return(body(tt.source), map[string]string{"Content-Type": "text/csv"}, nil)

			w, dir := newFSWorker(t, httpClient, WorkerOptions{Disambiguate: true})
			res := w.Process(context.Background(), d)

			require.NoError(t, res.Err)
			assert.True(t, res.OK())
			assert.Equal(t, "xubh-q36u.csv", res.OutputKey)
			assert.Equal(t, tt.cols, res.Columns)
			assert.Equal(t, d, res.Descriptor)

			out := readOutput(t, dir, d.Identifier)
			assert.Equal(t, tt.want, out)
			assert.Equal(t, int64(len(out)), res.Bytes)

			sum := sha256.Sum256([]byte(out))
			assert.Equal(t, hex.EncodeToString(sum[:]), res.Checksum)

			httpClient.AssertExpectations(t)
		})
	}
}

func TestFetchTransformWorker_CustomDelimiter(t *testing.T) {
	d := descriptor("4jcv-atw7", "2024-05-01")

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(body("Facility ID;City/Town\n1;Dothan\n"), map[string]string{}, nil)

	w, dir := newFSWorker(t, httpClient, WorkerOptions{Delimiter: ';'})
	res := w.Process(context.Background(), d)

	require.NoError(t, res.Err)
	assert.Equal(t, "facility_id;city_town\n1;Dothan\n", readOutput(t, dir, d.Identifier))
}

func TestScanHeaderLine(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		atEOF    bool
		fallback rune
		end      int
		term     string
		comma    rune
		err      error
	}{
		{name: "comma", input: "a,b,c\n1,2,3\n", fallback: ',', end: 5, term: "\n", comma: ','},
		{name: "semicolon beats fallback", input: "a;b;c\n", fallback: ',', end: 5, term: "\n", comma: ';'},
		{name: "tie keeps fallback", input: "a,b;c\n", fallback: ';', end: 5, term: "\n", comma: ';'},
		{name: "no separator keeps fallback", input: "facility\n", fallback: '|', end: 8, term: "\n", comma: '|'},
		{name: "crlf", input: "a\tb\r\n", fallback: ',', end: 3, term: "\r\n", comma: '\t'},
		{name: "quoted newline", input: "\"a\nb\";c\nx", fallback: ',', end: 7, term: "\n", comma: ';'},
		{name: "escaped quote", input: "\"a\"\"\n\",b\n", fallback: ',', end: 8, term: "\n", comma: ','},
		{name: "no terminator at eof", input: "a,b", atEOF: true, fallback: ',', end: 3, term: "", comma: ','},
		{name: "bare cr", input: "a,b\r1,2\r", atEOF: true, fallback: ',', err: errBareCR},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := scanHeaderLine([]byte(tt.input), tt.atEOF, tt.fallback)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.end, line.end)
			assert.Equal(t, tt.term, line.terminator)
			assert.Equal(t, tt.comma, line.comma)
		})
	}
}

func TestScanHeaderLine_UnterminatedHeaderBeforeEOF(t *testing.T) {
	_, err := scanHeaderLine([]byte("a,b,c"), false, ',')
	assert.ErrorContains(t, err, "header row longer than")
}

func TestFetchTransformWorker_RejectsBadBodies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		max     int64
	}{
		{name: "empty body", body: ""},
		{name: "whitespace body", body: "  \n\n"},
		{name: "html body", body: "<!DOCTYPE html><html><body>Not found</body></html>"},
		{name: "html content type", body: "a,b\n1,2\n", headers: map[string]string{"Content-Type": "text/html; charset=utf-8"}},
		{name: "over size limit", body: "a,b\n" + strings.Repeat("1,2\n", 100), max: 64},
		{name: "bare CR line endings", body: "A B,C\r1,2\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptor("xubh-q36u", "2024-05-01")

			httpClient := &mocks.MockHTTPClient{}
			httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
				Return(body(tt.body), tt.headers, nil)

			w, dir := newFSWorker(t, httpClient, WorkerOptions{MaxBytes: tt.max})
			res := w.Process(context.Background(), d)

			require.Error(t, res.Err)
			assert.False(t, res.OK())
			assert.ErrorIs(t, res.Err, domain.ErrFormat)
			assert.Equal(t, domain.KindFormat, domain.KindOf(res.Err))

			_, err := os.Stat(filepath.Join(dir, domain.OutputKey(d.Identifier)))
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestFetchTransformWorker_WithinSizeLimit(t *testing.T) {
	d := descriptor("xubh-q36u", "2024-05-01")
	source := "a,b\n1,2\n"

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(body(source), map[string]string{}, nil)

	w, dir := newFSWorker(t, httpClient, WorkerOptions{MaxBytes: int64(len(source))})
	res := w.Process(context.Background(), d)

	require.NoError(t, res.Err)
	assert.Equal(t, source, readOutput(t, dir, d.Identifier))
}

func TestFetchTransformWorker_DownloadErrorIsNetworkError(t *testing.T) {
	d := descriptor("xubh-q36u", "2024-05-01")

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(nil, nil, errors.New("GET failed: 503 Service Unavailable"))

	storage := &mocks.MockStorage{}
	w := NewFetchTransformWorker(httpClient, storage, WorkerOptions{}, mocks.NewNopLogger(), mocks.NewNopMetrics())

	res := w.Process(context.Background(), d)

	assert.ErrorIs(t, res.Err, domain.ErrNetwork)
	assert.Contains(t, res.Err.Error(), "503")
	storage.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFetchTransformWorker_MidStreamFailureKeepsPreviousFile(t *testing.T) {
	d := descriptor("xubh-q36u", "2024-05-01")

	// Larger than the header buffer so the failure happens while storing
	rows := strings.Repeat("010001,SOUTHEAST HEALTH,4\n", (maxHeaderBytes/26)+1024)
	broken := &failingBody{
		r:   strings.NewReader("Facility ID,Facility Name,Rating\n" + rows),
		err: errors.New("connection reset by peer"),
	}

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(io.ReadCloser(broken), map[string]string{}, nil)

	w, dir := newFSWorker(t, httpClient, WorkerOptions{})

	previous := "facility_id,facility_name,rating\n010001,OLD,1\n"
	path := filepath.Join(dir, domain.OutputKey(d.Identifier))
	require.NoError(t, os.WriteFile(path, []byte(previous), 0o644))

	res := w.Process(context.Background(), d)

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, domain.ErrNetwork)
	assert.Contains(t, res.Err.Error(), "connection reset")

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, previous, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestFetchTransformWorker_StorageErrorIsIOError(t *testing.T) {
	d := descriptor("xubh-q36u", "2024-05-01")

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(body("Facility ID\n1\n"), map[string]string{}, nil)

	storage := &mocks.MockStorage{}
	storage.On("Put", mock.Anything, "hospitals", "xubh-q36u.csv", mock.Anything,
		mock.MatchedBy(func(meta ports.ObjectMetadata) bool {
			return meta.ContentType == "text/csv" &&
				meta.UserMetadata["dataset-id"] == "xubh-q36u" &&
				meta.UserMetadata["modified-at"] == "2024-05-01T00:00:00Z"
		})).
		Return(errors.New("no space left on device"))

	w := NewFetchTransformWorker(httpClient, storage, WorkerOptions{Bucket: "hospitals"}, mocks.NewNopLogger(), mocks.NewNopMetrics())
	res := w.Process(context.Background(), d)

	assert.ErrorIs(t, res.Err, domain.ErrIO)
	assert.Equal(t, domain.KindIO, domain.KindOf(res.Err))
	storage.AssertExpectations(t)
}

func TestFetchTransformWorker_RecordsMetrics(t *testing.T) {
	d := descriptor("xubh-q36u", "2024-05-01")

	httpClient := &mocks.MockHTTPClient{}
	httpClient.On("Download", mock.Anything, d.DownloadURL, csvAccept).
		Return(nil, nil, errors.New("dial tcp: timeout"))

	metrics := &mocks.MockMetrics{}
	metrics.On("IncrementCounter", "datasets.processed", map[string]string{"status": "failure", "kind": "network"}).Once()

	w := NewFetchTransformWorker(httpClient, &mocks.MockStorage{}, WorkerOptions{}, mocks.NewNopLogger(), metrics)
	w.Process(context.Background(), d)

	metrics.AssertExpectations(t)
}

package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineError_Is(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("worker: %w", NetworkError("download", "xubh-q36u", cause))

	assert.ErrorIs(t, err, ErrNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrFormat)
	assert.Equal(t, KindNetwork, KindOf(err))
	assert.Contains(t, err.Error(), "xubh-q36u")
}

func TestKindOf_Unknown(t *testing.T) {
	assert.Equal(t, ErrorKind("unknown"), KindOf(errors.New("plain")))
}

func TestJobReport_Finalize(t *testing.T) {
	r := &JobReport{}
	r.Finalize(day("2024-01-01"), false)
	assert.Equal(t, StatusNoop, r.Status)

	r = &JobReport{Selected: []string{"a"}, Succeeded: []string{"a"}}
	r.Finalize(day("2024-01-01"), false)
	assert.Equal(t, StatusSuccess, r.Status)

	r = &JobReport{Selected: []string{"a"}, Failed: []Failure{{DatasetID: "a", Kind: KindIO}}}
	r.Finalize(day("2024-01-01"), false)
	assert.Equal(t, StatusPartialFailure, r.Status)
	assert.True(t, r.HasFailures())
}

func TestJobReport_FinalizeDryRunAndFail(t *testing.T) {
	r := &JobReport{Selected: []string{"a"}}
	r.Finalize(day("2024-01-01"), true)
	assert.Equal(t, StatusDryRun, r.Status)

	r = &JobReport{}
	r.Fail(day("2024-01-02"), FormatError("decode metastore", "", errors.New("unexpected EOF")))
	assert.Equal(t, StatusFailed, r.Status)
	assert.Contains(t, r.Error, "decode metastore")
	assert.True(t, r.FinishedAt.Equal(day("2024-01-02")))
}

package errors

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReports_ExtendKeepsOrder(t *testing.T) {
	// Given: a caller and a callee each with reports
	var caller Reports
	caller.Warn("rankvar", "Cache file loading failed", "timeout")

	var callee Reports
	callee.Warn("synvar", "Variant not found at this position in the gene", "BRAF V600")
	callee.Warn("es", "Elasticsearch failed", "503")

	// When: the caller concatenates the callee's list
	caller.Extend(callee)

	// Then: order is preserved and nothing is fatal
	require.Len(t, caller, 3)
	assert.Equal(t, "synvar", caller[1].Service)
	assert.False(t, caller.HasFatal())
}

func TestReports_FirstFatal(t *testing.T) {
	var r Reports
	r.Warn("a", "w", "")
	r.Fatal("b", "VCF file not found", "missing.txt")
	r.Fatal("c", "second", "")

	rep, ok := r.FirstFatal()
	require.True(t, ok)
	assert.Equal(t, "VCF file not found", rep.Description)
	assert.True(t, r.HasFatal())
}

func TestReports_FromError(t *testing.T) {
	var r Reports
	r.FromError("x", "ignored", nil)
	r.FromError("x", "plain", errors.New("boom"))
	r.FromError("x", "fatal", New(ErrCodeConfigInvalid, "bad", nil))

	require.Len(t, r, 2)
	assert.Equal(t, LevelWarning, r[0].Level)
	assert.Equal(t, LevelFatal, r[1].Level)
}

func TestReports_Dedup(t *testing.T) {
	var r Reports
	r.Warn("es", "Elasticsearch failed", "503")
	r.Warn("ct", "CT failed", "")
	r.Warn("es", "Elasticsearch failed", "503")
	r.Warn("es", "Elasticsearch failed", "504")

	d := r.Dedup()

	require.Len(t, d, 3)
	assert.Equal(t, "ct", d[1].Service)
	assert.Equal(t, "504", d[2].Details)
}

func TestReport_JSONShape(t *testing.T) {
	data, err := json.Marshal(Report{Level: LevelWarning, Service: "es", Description: "d", Details: "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"level":"warning","service":"es","description":"d","details":"x"}`, string(data))
}

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	env := NewEnvelope(Report{Level: LevelFatal, Description: "VCF file not found", Details: "f.txt"}, now)

	assert.Equal(t, "03/05/2024, 14:07:09", env.Timestamp)
	assert.Equal(t, 500, env.Status)
	assert.Equal(t, "Internal Server Error", env.Error)
	assert.Equal(t, "VCF file not found: f.txt", env.Message)
}

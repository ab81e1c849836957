package models

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintReports_SortedByModel(t *testing.T) {
	var buf bytes.Buffer
	PrintReports(&buf, []Report{
		{Model: "root.b", Metrics: []Metric{{Name: "x", Value: 2}}},
		{Model: "root.a", Metrics: []Metric{{Name: "y", Value: 1.5}}},
	})

	out := buf.String()
	assert.Contains(t, out, "=== Model Reports ===")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("root.a")), bytes.Index(buf.Bytes(), []byte("root.b")))
	assert.Contains(t, out, "1.5000")
}

func TestReport_Get(t *testing.T) {
	r := Report{Model: "m", Metrics: []Metric{{Name: "n", Value: 3}}}
	v, ok := r.Get("n")
	assert.True(t, ok)
	assert.Equal(t, 3.0, v)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

package export

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// putRecorder fakes the PutObject subset of S3.
type putRecorder struct {
	mu      sync.Mutex
	objects map[string]recordedPut
}

type recordedPut struct {
	contentType string
	size        int
}

func (m *putRecorder) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodPut {
		return &http.Response{StatusCode: http.StatusNotImplemented, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}, nil
	}
	body, _ := io.ReadAll(req.Body)

	m.mu.Lock()
	m.objects[strings.TrimPrefix(req.URL.Path, "/")] = recordedPut{
		contentType: req.Header.Get("Content-Type"),
		size:        len(body),
	}
	m.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"Etag": {`"abc"`}},
	}, nil
}

func newMockSink(t *testing.T) (*S3Sink, *putRecorder) {
	t.Helper()
	rt := &putRecorder{objects: map[string]recordedPut{}}
	sink, err := NewS3Sink(context.Background(), config.ExportConfig{
		Bucket:          "exports",
		Region:          "us-east-1",
		Endpoint:        "https://mock.s3.local",
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		UsePathStyle:    true,
	}, func(o *s3.Options) {
		o.HTTPClient = &http.Client{Transport: rt}
	})
	require.NoError(t, err)
	return sink, rt
}

func TestS3Sink_Put(t *testing.T) {
	sink, rt := newMockSink(t)

	err := sink.Put(context.Background(), "exports/2026/03/01/a.xlsx", []byte("workbook"), contentTypeXLSX)
	require.NoError(t, err)

	got, ok := rt.objects["exports/exports/2026/03/01/a.xlsx"]
	require.True(t, ok)
	assert.Equal(t, contentTypeXLSX, got.contentType)
	assert.Positive(t, got.size)
	assert.Equal(t, "s3://exports/exports/2026/03/01/a.xlsx", sink.Location("exports/2026/03/01/a.xlsx"))
}

func TestNewObjectSink_DisabledWithoutBucket(t *testing.T) {
	sink, err := NewObjectSink(config.Config{})
	require.NoError(t, err)
	assert.Nil(t, sink)
}

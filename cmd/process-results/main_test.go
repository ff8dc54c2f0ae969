package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Lllllllleong/processresults/internal/models"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProcessor struct {
	got *models.ProcessResultsRequest
	res *models.ProcessResultsResponse
	err error
}

func (s *stubProcessor) Process(_ context.Context, req *models.ProcessResultsRequest) (*models.ProcessResultsResponse, error) {
	s.got = req
	return s.res, s.err
}

// useProcessor installs p as the already-initialized instance.
func useProcessor(t *testing.T, p resultsProcessor, err error) {
	t.Helper()
	once = sync.Once{}
	once.Do(func() {
		processorInstance, initErr = p, err
	})
	t.Cleanup(func() {
		once = sync.Once{}
		processorInstance, initErr = nil, nil
	})
}

const validBody = `{"executionId":"exec-1","classificationResult":{"document":{"id":"doc-1","sections":[]}},"extractionResults":[{"document":{"id":"frag-1","sections":[]}}]}`

func TestHandleProcessResults_Success(t *testing.T) {
	stub := &stubProcessor{res: &models.ProcessResultsResponse{Document: models.DocumentReference(`{"id":"doc-1","sections":[]}`)}}
	useProcessor(t, stub, nil)

	rec := httptest.NewRecorder()
	handleProcessResults(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validBody)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"document":{"id":"doc-1","sections":[]}}`, rec.Body.String())
	require.NotNil(t, stub.got)
	assert.Equal(t, "exec-1", stub.got.ExecutionID)
	assert.Len(t, stub.got.ExtractionResults, 1)
}

func TestHandleProcessResults_BadRequests(t *testing.T) {
	useProcessor(t, &stubProcessor{}, nil)

	for name, body := range map[string]string{
		"not json":         "{",
		"missing document": `{"extractionResults":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handleProcessResults(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleProcessResults_MissingDocument(t *testing.T) {
	stub := &stubProcessor{}
	useProcessor(t, stub, nil)

	rec := httptest.NewRecorder()
	handleProcessResults(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"extractionResults":[]}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), errMissingDocument.Error())
	assert.Nil(t, stub.got)
}

func TestHandleProcessResults_ProcessingFailure(t *testing.T) {
	useProcessor(t, &stubProcessor{err: errors.New("boom")}, nil)

	rec := httptest.NewRecorder()
	handleProcessResults(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validBody)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "document")
}

func TestHandleProcessResults_InitFailure(t *testing.T) {
	useProcessor(t, nil, errors.New("WORKING_BUCKET environment variable must be set"))

	rec := httptest.NewRecorder()
	handleProcessResults(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(validBody)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestProcessResultsEvent(t *testing.T) {
	stub := &stubProcessor{res: &models.ProcessResultsResponse{Document: models.DocumentReference(`{"id":"doc-1","sections":[]}`)}}
	useProcessor(t, stub, nil)

	e := cloudevents.NewEvent()
	e.SetID("evt-1")
	e.SetSource("//workflows/test")
	e.SetType("com.example.processresults.requested")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, []byte(validBody)))

	require.NoError(t, processResultsEvent(context.Background(), e))
	require.NotNil(t, stub.got)
	assert.Equal(t, "exec-1", stub.got.ExecutionID)
}

func TestProcessResultsEvent_ProcessingFailure(t *testing.T) {
	useProcessor(t, &stubProcessor{err: errors.New("boom")}, nil)

	e := cloudevents.NewEvent()
	e.SetID("evt-2")
	e.SetSource("//workflows/test")
	e.SetType("com.example.processresults.requested")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, []byte(validBody)))

	assert.Error(t, processResultsEvent(context.Background(), e))
}

func TestProcessResultsEvent_MissingDocument(t *testing.T) {
	stub := &stubProcessor{}
	useProcessor(t, stub, nil)

	e := cloudevents.NewEvent()
	e.SetID("evt-3")
	e.SetSource("//workflows/test")
	e.SetType("com.example.processresults.requested")
	require.NoError(t, e.SetData(cloudevents.ApplicationJSON, []byte(`{"extractionResults":[]}`)))

	err := processResultsEvent(context.Background(), e)
	assert.ErrorIs(t, err, errMissingDocument)
	assert.Nil(t, stub.got, "processing must not start without a base document")
}

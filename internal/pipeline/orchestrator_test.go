package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fapiao/internal/domain"
	"fapiao/internal/port"
	"fapiao/mocks"
)

func onePage(path string) []domain.RawPage {
	return []domain.RawPage{{SourcePath: path, PageIndex: 0, PNG: []byte("png")}}
}

func invoiceFragments(number string) map[int][]domain.Fragment {
	return map[int][]domain.Fragment{
		0: {
			{Text: "发票号码:" + number, Confidence: 0.92},
			{Text: "价税合计(大写)壹佰壹拾叁圆整 (小写)¥113.00", Confidence: 0.88},
		},
	}
}

func TestRun_EmptySubmission(t *testing.T) {
	orch := New(&mocks.MockRasterizer{}, &mocks.MockRecognizer{}, Config{})

	_, err := orch.Run(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

func TestRun_IsolatesPerDocumentFailure(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, "/in/a.pdf", mock.Anything).Return(onePage("/in/a.pdf"), nil)
	rasterizer.On("Render", mock.Anything, "/in/b.pdf", mock.Anything).Return(onePage("/in/b.pdf"), nil)
	rasterizer.On("Render", mock.Anything, "/in/corrupt.pdf", mock.Anything).
		Return(nil, errors.New("not a pdf"))

	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("12345678"), nil)

	orch := New(rasterizer, recognizer, Config{Concurrency: 2})
	result, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf", "/in/corrupt.pdf"})

	require.NoError(t, err)
	assert.Len(t, result.Records, 2)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "/in/corrupt.pdf", result.Failures[0].SourcePath)
	assert.Equal(t, domain.FailureRasterization, result.Failures[0].Kind)
	assert.Equal(t, domain.StageRasterizing, result.Failures[0].Stage)
	assert.Equal(t, 3, result.Submitted())
	rasterizer.AssertExpectations(t)
}

func TestRun_RecordCarriesExtractedFields(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("/in/a.pdf"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("12345678"), nil)

	orch := New(rasterizer, recognizer, Config{Concurrency: 1})
	result, err := orch.Run(context.Background(), []string{"/in/a.pdf"})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	rec := result.Records[0]

	require.NotNil(t, rec.InvoiceNumber)
	assert.Equal(t, "12345678", *rec.InvoiceNumber)
	require.NotNil(t, rec.TotalAmount)
	assert.Equal(t, 113.00, *rec.TotalAmount)
	assert.True(t, rec.Missing(domain.FieldBuyerName))

	assert.Len(t, result.RawText["/in/a.pdf"], 2)
}

func TestRun_RecognitionFailureKind(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("/in/a.pdf"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("engine not installed"))

	orch := New(rasterizer, recognizer, Config{Concurrency: 1})
	result, err := orch.Run(context.Background(), []string{"/in/a.pdf"})

	require.NoError(t, err)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, domain.FailureRecognition, result.Failures[0].Kind)
	assert.Empty(t, result.Records)
}

func TestRun_WarnsOnWidespreadRecognitionFailure(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("x"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("missing language data"))

	orch := New(rasterizer, recognizer, Config{Concurrency: 2})
	result, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf", "/in/c.pdf", "/in/d.pdf"})

	require.NoError(t, err)
	assert.Len(t, result.Failures, 4)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "recognition failed for 4 of 4")
}

func TestRun_CanceledBeforeSubmission(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	orch := New(rasterizer, recognizer, Config{Concurrency: 2})
	result, err := orch.Run(ctx, []string{"/in/a.pdf", "/in/b.pdf"})

	require.NoError(t, err)
	assert.Empty(t, result.Records)
	require.Len(t, result.Failures, 2)
	for _, fail := range result.Failures {
		assert.Equal(t, domain.FailureCanceled, fail.Kind)
		assert.Equal(t, domain.StagePending, fail.Stage)
	}
	rasterizer.AssertNotCalled(t, "Render")
}

func TestRun_MarksDuplicateInvoiceNumbers(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("x"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("99990000"), nil)

	// Concurrency 1 keeps record order aligned with submission order.
	orch := New(rasterizer, recognizer, Config{Concurrency: 1})
	result, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf"})

	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.False(t, result.Records[0].Flagged(domain.QualityDuplicateNumber))
	assert.True(t, result.Records[1].Flagged(domain.QualityDuplicateNumber))
}

func TestRun_FlagsDocumentsWithNoText(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("x"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(map[int][]domain.Fragment{}, nil)

	orch := New(rasterizer, recognizer, Config{Concurrency: 1})
	result, err := orch.Run(context.Background(), []string{"/in/blank.pdf"})

	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.True(t, result.Records[0].Flagged(domain.QualityNoTextRecognized))
	assert.Len(t, result.Records[0].MissingFields, len(domain.AllFields()))
}

func TestRun_ReportsProgressForEveryDocument(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, "/in/a.pdf", mock.Anything).Return(onePage("/in/a.pdf"), nil)
	rasterizer.On("Render", mock.Anything, "/in/bad.pdf", mock.Anything).Return(nil, errors.New("boom"))
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("12345678"), nil)

	var mu sync.Mutex
	var events []ProgressEvent
	orch := New(rasterizer, recognizer, Config{Concurrency: 2},
		WithProgress(func(ev ProgressEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		}))

	_, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/bad.pdf"})
	require.NoError(t, err)

	require.Len(t, events, 2)
	sort.Slice(events, func(i, j int) bool { return events[i].SourcePath < events[j].SourcePath })
	assert.Equal(t, domain.StageAssembled, events[0].Stage)
	assert.Equal(t, domain.StageFailed, events[1].Stage)
	for _, ev := range events {
		assert.Equal(t, 2, ev.Total)
	}
}

func TestRun_Idempotent(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return(onePage("x"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("12345678"), nil)

	orch := New(rasterizer, recognizer, Config{Concurrency: 3})

	first, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf"})
	require.NoError(t, err)
	second, err := orch.Run(context.Background(), []string{"/in/a.pdf", "/in/b.pdf"})
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)
	require.Len(t, second.Records, len(first.Records))
	for i := range first.Records {
		assert.Equal(t, *first.Records[i].InvoiceNumber, *second.Records[i].InvoiceNumber)
	}
}

func TestProcessOne(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	rasterizer.On("Render", mock.Anything, "/in/a.pdf", mock.Anything).Return(onePage("/in/a.pdf"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, mock.Anything).
		Return(invoiceFragments("12345678"), nil)

	orch := New(rasterizer, recognizer, Config{})
	record, failure := orch.ProcessOne(context.Background(), "/in/a.pdf")

	require.Nil(t, failure)
	require.NotNil(t, record)
	assert.Equal(t, "12345678", *record.InvoiceNumber)
}

func TestNew_AppliesRenderAndRecognizeOptions(t *testing.T) {
	rasterizer := &mocks.MockRasterizer{}
	recognizer := &mocks.MockRecognizer{}

	renderOpts := port.RenderOptions{Scale: 2.0}
	recognizeOpts := port.RecognizeOptions{Languages: []string{"chi_sim", "eng"}, BatchSize: 4}

	rasterizer.On("Render", mock.Anything, "/in/a.pdf", renderOpts).Return(onePage("/in/a.pdf"), nil)
	recognizer.On("Recognize", mock.Anything, mock.Anything, recognizeOpts).
		Return(invoiceFragments("12345678"), nil)

	orch := New(rasterizer, recognizer, Config{Raster: renderOpts, Recognize: recognizeOpts})
	_, err := orch.Run(context.Background(), []string{"/in/a.pdf"})

	require.NoError(t, err)
	rasterizer.AssertExpectations(t)
	recognizer.AssertExpectations(t)
}

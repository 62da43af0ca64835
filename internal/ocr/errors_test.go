package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestOCRErrorWrapping(t *testing.T) {
	err := WrapOCRError("Recognize", ErrPDFTooLarge, "file size: 1 bytes")
	assert.ErrorIs(t, err, ErrPDFTooLarge)
	assert.Equal(t, "ocr: Recognize failed: file size: 1 bytes: "+ErrPDFTooLarge.Error(), err.Error())

	again := WrapOCRError("Extract", err, "ignored")
	assert.Same(t, err, again, "already wrapped errors pass through")

	assert.NoError(t, WrapOCRError("x", nil, ""))

	var ocrErr *OCRError
	assert.True(t, errors.As(err, &ocrErr))
	assert.Equal(t, "Recognize", ocrErr.Op)
}

func TestReadPDFChecks(t *testing.T) {
	_, err := readPDF("Recognize", bytesReader("hello world"), 100)
	assert.ErrorIs(t, err, ErrInvalidPDF)

	_, err = readPDF("Recognize", bytesReader("%PDF-1.4 and more"), 4)
	assert.ErrorIs(t, err, ErrPDFTooLarge)

	data, err := readPDF("Recognize", bytesReader("%PDF-1.4"), 100)
	assert.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestDocumentAIClassify(t *testing.T) {
	p := &DocumentAIEngine{config: DocumentAIConfig{ProcessorID: "abc123"}}

	tests := []struct {
		code codes.Code
		want error
	}{
		{codes.PermissionDenied, ErrMissingCredentials},
		{codes.Unauthenticated, ErrMissingCredentials},
		{codes.NotFound, ErrInvalidConfiguration},
		{codes.InvalidArgument, ErrInvalidPDF},
		{codes.Internal, ErrOCRFailed},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.ErrorIs(t, p.classify(status.Error(tt.code, "boom")), tt.want)
		})
	}

	deadline := status.Error(codes.DeadlineExceeded, "slow")
	assert.Equal(t, deadline, p.classify(deadline))
	assert.ErrorIs(t, p.classify(context.Canceled), ErrOCRFailed)
}

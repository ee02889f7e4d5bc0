package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medcheck/MedCheck-Engine/internal/verification/common"
	apperrors "github.com/medcheck/MedCheck-Engine/pkg/errors"
	verdicttypes "github.com/medcheck/MedCheck-Engine/pkg/types/verification"
)

type fakeVerifier struct {
	gotQuery common.ProductQuery
	verdict  *verdicttypes.Verdict
	err      error
}

func (v *fakeVerifier) Verify(_ context.Context, query common.ProductQuery) (*verdicttypes.Verdict, error) {
	v.gotQuery = query
	return v.verdict, v.err
}

type formImage struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, fields map[string]string, images []formImage) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(t, mw.WriteField(key, value))
	}
	for _, img := range images {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="images"; filename="`+img.name+`"`)
		if img.contentType != "" {
			header.Set("Content-Type", img.contentType)
		}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(img.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestVerificationHandler_Success(t *testing.T) {
	verifier := &fakeVerifier{
		verdict: &verdicttypes.Verdict{
			RequestID:  "req-1",
			RiskLevel:  verdicttypes.RiskHigh,
			Confidence: 88.5,
			Summary:    "matched an active recall",
		},
	}
	h := NewVerificationHandler(verifier, nil)

	req := multipartRequest(t, map[string]string{
		"product_name": "  Amoxil 500mg  ",
		"description":  "blister pack",
		"batch_number": " B123 ",
	}, []formImage{
		{name: "front.jpg", contentType: "image/jpeg", data: []byte("jpegdata")},
	})
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "Amoxil 500mg", verifier.gotQuery.ProductName)
	assert.Equal(t, "blister pack", verifier.gotQuery.Description)
	assert.Equal(t, "B123", verifier.gotQuery.UserBatchNumber)
	require.Len(t, verifier.gotQuery.Images, 1)
	assert.Equal(t, "front.jpg", verifier.gotQuery.Images[0].Name)
	assert.Equal(t, "image/jpeg", verifier.gotQuery.Images[0].ContentType)
	assert.Equal(t, []byte("jpegdata"), verifier.gotQuery.Images[0].Data)

	var verdict verdicttypes.Verdict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verdict))
	assert.Equal(t, "req-1", verdict.RequestID)
	assert.Equal(t, verdicttypes.RiskHigh, verdict.RiskLevel)
}

func TestVerificationHandler_NonMultipartBody(t *testing.T) {
	h := NewVerificationHandler(&fakeVerifier{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/verifications",
		strings.NewReader(`{"product_name":"Amoxil"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Verify(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "COMMON_002", decodeError(t, rec).Code)
}

func TestVerificationHandler_TooManyImages(t *testing.T) {
	verifier := &fakeVerifier{}
	h := NewVerificationHandler(verifier, nil)

	images := make([]formImage, maxImagesPerRequest+1)
	for i := range images {
		images[i] = formImage{name: "img.png", contentType: "image/png", data: []byte("x")}
	}
	rec := httptest.NewRecorder()
	h.Verify(rec, multipartRequest(t, map[string]string{"product_name": "Amoxil"}, images))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "COMMON_010", decodeError(t, rec).Code)
	assert.Empty(t, verifier.gotQuery.ProductName, "pipeline must not run on invalid input")
}

func TestVerificationHandler_UnsupportedImageType(t *testing.T) {
	h := NewVerificationHandler(&fakeVerifier{}, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, multipartRequest(t, map[string]string{"product_name": "Amoxil"}, []formImage{
		{name: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF")},
	}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "OCR_004", decodeError(t, rec).Code)
}

func TestVerificationHandler_PipelineInputError(t *testing.T) {
	verifier := &fakeVerifier{
		err: apperrors.New(apperrors.ErrCodeVerificationInputInvalid, "product name or image required"),
	}
	h := NewVerificationHandler(verifier, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, multipartRequest(t, map[string]string{}, nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VER_001", decodeError(t, rec).Code)
}

func TestVerificationHandler_ServerErrorIsMasked(t *testing.T) {
	verifier := &fakeVerifier{
		err: apperrors.New(apperrors.ErrCodeRankingFailed, "scorer panicked on alert a-17"),
	}
	h := NewVerificationHandler(verifier, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, multipartRequest(t, map[string]string{"product_name": "Amoxil"}, nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "VER_003", body.Code)
	assert.NotContains(t, body.Message, "a-17", "internal detail must not leak")
}

func TestVerificationHandler_NoImagesIsValid(t *testing.T) {
	verifier := &fakeVerifier{verdict: &verdicttypes.Verdict{RiskLevel: verdicttypes.RiskSafe}}
	h := NewVerificationHandler(verifier, nil)

	rec := httptest.NewRecorder()
	h.Verify(rec, multipartRequest(t, map[string]string{"product_name": "Amoxil"}, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, verifier.gotQuery.Images)
}

package httpserver

import (
	"io"
	"net/http"

	"github.com/addispay/wallet-server/internal/auth"
	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/kyc"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/pkg/responders"
)

const kycMaxUploadBytes = 10 << 20 // 10 MiB per document, matching a typical ID-photo upload

type kycSubmissionDTO struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	DocType     string `json:"doc_type"`
	SubmittedAt string `json:"submitted_at"`
}

// submitKYC implements spec.md §6.1 "POST /api/kyc/submit/": multipart
// doc_type, document, selfie.
func (h handlers) submitKYC(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		unauthorized(w, r)
		return
	}

	if err := r.ParseMultipartForm(kycMaxUploadBytes); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed multipart upload")
		return
	}

	docType := ledger.KYCDocType(r.FormValue("doc_type"))
	if docType != ledger.KYCDocNID && docType != ledger.KYCDocPassport {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "doc_type must be NID or PASSPORT")
		return
	}

	document, err := readMultipartFile(r, "document", kycMaxUploadBytes)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "document file is required")
		return
	}
	selfie, err := readMultipartFile(r, "selfie", kycMaxUploadBytes)
	if err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "selfie file is required")
		return
	}

	submission, err := h.kyc.Submit(r.Context(), kyc.SubmitRequest{
		UserRef:  principal.UserRef,
		DocType:  docType,
		Document: document,
		Selfie:   selfie,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, kycSubmissionDTO{
		ID:          submission.ID,
		Status:      string(submission.Status),
		DocType:     string(submission.DocType),
		SubmittedAt: submission.SubmittedAt.Format(timeLayout),
	})
}

func readMultipartFile(r *http.Request, field string, limit int64) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(io.LimitReader(file, limit))
}

type reviewKYCRequest struct {
	Decision string `json:"decision"`
}

// reviewKYC implements spec.md §6.1 admin KYC review, which the spec's
// §4.8 Review operation requires but leaves unassigned a dedicated REST
// path for; this mounts it alongside the withdrawal admin endpoints
// (spec.md §6.1's admin group).
func (h handlers) reviewKYC(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	id := chiURLParam(r, "id")

	var req reviewKYCRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		apierrors.WriteSimpleError(w, apierrors.ErrInvalidInput, "malformed request body")
		return
	}

	submission, err := h.kyc.Review(r.Context(), id, kyc.Decision(req.Decision), principal.UserRef)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	responders.JSON(w, http.StatusOK, kycSubmissionDTO{
		ID:          submission.ID,
		Status:      string(submission.Status),
		DocType:     string(submission.DocType),
		SubmittedAt: submission.SubmittedAt.Format(timeLayout),
	})
}

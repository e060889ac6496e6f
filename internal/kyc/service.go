// Package kyc implements encrypted identity-document submission and review
// (spec.md §4.8, C8). Documents are sealed with AES-GCM before they ever
// reach the store; verification raises the associated wallet's KYC level.
package kyc

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"time"

	apierrors "github.com/addispay/wallet-server/internal/errors"
	"github.com/addispay/wallet-server/internal/ledger"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/google/uuid"
)

// CodedError carries the stable error code the HTTP layer maps to a status.
type CodedError struct {
	Code    apierrors.ErrorCode
	Message string
}

func (e *CodedError) Error() string { return e.Message }

// ErrorCode exposes the stable error code for the HTTP layer.
func (e *CodedError) ErrorCode() apierrors.ErrorCode { return e.Code }

func apiErr(code apierrors.ErrorCode, msg string) *CodedError {
	return &CodedError{Code: code, Message: msg}
}

// Errors returned by Submit/Review.
var (
	ErrInvalidDocType = apiErr(apierrors.ErrInvalidInput, "doc_type must be NID or PASSPORT")
	ErrNotPending     = apiErr(apierrors.ErrConflictDuplicate, "submission is not pending review")
)

// Decision is the admin's verdict on a submission.
type Decision string

const (
	DecisionVerified Decision = "VERIFIED"
	DecisionRejected Decision = "REJECTED"
)

// Sealer authenticates and encrypts/decrypts document blobs at rest
// (spec.md §4.8: "encrypt both blobs using an authenticated symmetric
// scheme"). AESGCMSealer is the default, built from KYC_ENCRYPTION_KEY.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(ciphertext []byte) (plaintext []byte, authentic bool, err error)
}

// AESGCMSealer implements Sealer with AES-256-GCM. Nonces are prepended to
// the ciphertext so each blob is self-describing.
type AESGCMSealer struct {
	aead cipher.AEAD
}

// NewAESGCMSealer builds a sealer from a 32-byte key (spec.md §4.8: startup
// must fail if KYC_ENCRYPTION_KEY is missing; callers enforce that by never
// constructing a sealer with an empty key).
func NewAESGCMSealer(key []byte) (*AESGCMSealer, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("kyc: encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("kyc: build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("kyc: build gcm: %w", err)
	}
	return &AESGCMSealer{aead: aead}, nil
}

// Seal encrypts plaintext, prefixing the random nonce.
func (s *AESGCMSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("kyc: generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal. If authentication fails, it
// returns the raw bytes with authentic=false rather than an error — legacy
// compatibility noted in spec.md §4.8/§9; callers must treat a non-authentic
// open as "unverified" content, never as a fatal error.
func (s *AESGCMSealer) Open(ciphertext []byte) ([]byte, bool, error) {
	n := s.aead.NonceSize()
	if len(ciphertext) < n {
		return ciphertext, false, nil
	}
	nonce, sealed := ciphertext[:n], ciphertext[n:]
	plaintext, err := s.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return ciphertext, false, nil
	}
	return plaintext, true, nil
}

// Service submits and reviews KYC documents.
type Service struct {
	Store   ledger.Store
	Sealer  Sealer
	Metrics *metrics.Metrics
}

// SubmitRequest is the input to Submit.
type SubmitRequest struct {
	UserRef  string
	DocType  ledger.KYCDocType
	Document []byte
	Selfie   []byte
}

// Submit implements spec.md §4.8 "submit". If the user already has a PENDING
// submission, its id is returned without creating a second one.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (ledger.KYCSubmission, error) {
	if req.DocType != ledger.KYCDocNID && req.DocType != ledger.KYCDocPassport {
		return ledger.KYCSubmission{}, ErrInvalidDocType
	}

	var result ledger.KYCSubmission
	var created bool

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		existing, found, err := tx.GetPendingKYCSubmission(ctx, req.UserRef)
		if err != nil {
			return err
		}
		if found {
			result = existing
			return nil
		}

		docCipher, err := s.Sealer.Seal(req.Document)
		if err != nil {
			return apiErr(apierrors.ErrInternal, err.Error())
		}
		selfieCipher, err := s.Sealer.Seal(req.Selfie)
		if err != nil {
			return apiErr(apierrors.ErrInternal, err.Error())
		}

		now := time.Now()
		submission := ledger.KYCSubmission{
			ID:             uuid.NewString(),
			UserRef:        req.UserRef,
			DocType:        req.DocType,
			DocumentCipher: docCipher,
			SelfieCipher:   selfieCipher,
			Status:         ledger.KYCPending,
			SubmittedAt:    now,
		}
		if err := tx.CreateKYCSubmission(ctx, submission); err != nil {
			return err
		}
		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: req.UserRef, ActorRef: req.UserRef,
			Event:      "KYC_SUBMITTED",
			Metadata:   map[string]any{"submission_id": submission.ID, "doc_type": submission.DocType},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		result = submission
		created = true
		return nil
	})
	if err != nil {
		return ledger.KYCSubmission{}, err
	}
	if s.Metrics != nil && created {
		s.Metrics.KYCSubmissionsTotal.WithLabelValues(string(req.DocType)).Inc()
	}
	return result, nil
}

// Review implements spec.md §4.8 "review": VERIFIED raises the wallet's
// kyc_level to at least 2; REJECTED only records the decision.
func (s *Service) Review(ctx context.Context, submissionID string, decision Decision, reviewerRef string) (ledger.KYCSubmission, error) {
	var result ledger.KYCSubmission

	err := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		submission, err := tx.GetKYCSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		if submission.Status != ledger.KYCPending {
			return ErrNotPending
		}

		now := time.Now()
		switch decision {
		case DecisionVerified:
			submission.Status = ledger.KYCVerified
		case DecisionRejected:
			submission.Status = ledger.KYCRejected
		default:
			return apiErr(apierrors.ErrInvalidInput, "decision must be VERIFIED or REJECTED")
		}
		submission.ReviewedAt = &now
		submission.ReviewerRef = reviewerRef
		if err := tx.SaveKYCSubmission(ctx, submission); err != nil {
			return err
		}

		if decision == DecisionVerified {
			wallet, err := tx.LockWallet(ctx, submission.UserRef)
			if err != nil {
				return err
			}
			if wallet.KYCLevel < 2 {
				wallet.KYCLevel = 2
				if err := tx.SaveWallet(ctx, wallet); err != nil {
					return err
				}
			}
		}

		if err := tx.AppendAudit(ctx, ledger.AuditLog{
			ID: uuid.NewString(), UserRef: submission.UserRef, ActorRef: reviewerRef,
			Event:      "KYC_REVIEWED",
			Metadata:   map[string]any{"submission_id": submission.ID, "decision": decision},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		result = submission
		return nil
	})
	if err != nil {
		return ledger.KYCSubmission{}, err
	}
	if s.Metrics != nil {
		s.Metrics.KYCReviewsTotal.WithLabelValues(string(decision)).Inc()
	}
	return result, nil
}

// Open decrypts a submission's document and selfie for an authorized reader
// (spec.md §4.8 "Reads decrypt on open").
func (s *Service) Open(ctx context.Context, submissionID string) (document, selfie []byte, err error) {
	var submission ledger.KYCSubmission
	txErr := s.Store.WithTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		var err error
		submission, err = tx.GetKYCSubmission(ctx, submissionID)
		return err
	})
	if txErr != nil {
		return nil, nil, txErr
	}
	doc, _, err := s.Sealer.Open(submission.DocumentCipher)
	if err != nil {
		return nil, nil, err
	}
	sel, _, err := s.Sealer.Open(submission.SelfieCipher)
	if err != nil {
		return nil, nil, err
	}
	return doc, sel, nil
}

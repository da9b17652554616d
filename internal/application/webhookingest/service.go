// Package webhookingest processes asynchronous status callbacks from Buffr.
// Deliveries are at-least-once and may arrive out of order, duplicated or
// replayed; the idempotency store and the voucher transition table are what
// keep ingestion safe.
package webhookingest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ketchup/backend/internal/application/status"
	"github.com/ketchup/backend/internal/domain/shared"
	"github.com/ketchup/backend/internal/domain/voucher"
	"github.com/ketchup/backend/internal/domain/webhook"
	"go.uber.org/zap"
)

// Namespace is the idempotency namespace for the Buffr webhook endpoint
const Namespace = "webhooks/buffr"

// ResponseData is the payload section of a webhook acknowledgement
type ResponseData struct {
	WebhookEventID string `json:"webhookEventId,omitempty"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

// Response is the acknowledgement body returned to Buffr
type Response struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Data    *ResponseData `json:"data,omitempty"`
}

// Result carries the HTTP outcome of processing one inbound call. Body is
// the serialized response; for a duplicate delivery it is the original
// response replayed verbatim from the cache.
type Result struct {
	StatusCode int
	Body       string
	Replayed   bool
}

// Config contains dependencies and settings for the ingestion service
type Config struct {
	Events        webhook.Repository
	StatusMonitor *status.Service
	Idempotency   shared.IdempotencyStore
	Dedupe        shared.DedupeStore
	// Secret is the shared HMAC-SHA256 key. StrictSignature rejects unsigned
	// calls; disabling it is an explicit trust downgrade that is logged on
	// every skipped verification.
	Secret          string
	StrictSignature bool
	CacheTTL        time.Duration
	Logger          *zap.Logger
}

// Service ingests Buffr webhook callbacks
type Service struct {
	events        webhook.Repository
	statusMonitor *status.Service
	idempotency   shared.IdempotencyStore
	dedupe        shared.DedupeStore
	secret        string
	strict        bool
	cacheTTL      time.Duration
	logger        *zap.Logger
}

// NewService creates a new webhook ingestion service
func NewService(cfg Config) *Service {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		events:        cfg.Events,
		statusMonitor: cfg.StatusMonitor,
		idempotency:   cfg.Idempotency,
		dedupe:        cfg.Dedupe,
		secret:        cfg.Secret,
		strict:        cfg.StrictSignature,
		cacheTTL:      ttl,
		logger:        cfg.Logger.Named("webhook"),
	}
}

// Process handles one inbound webhook call. clientKey is the caller-supplied
// idempotency header value, empty when none was sent.
func (s *Service) Process(ctx context.Context, rawBody []byte, signature, clientKey string) (*Result, error) {
	// A client-supplied key short-circuits before anything else: redelivery
	// must observe the original response unchanged with no reprocessing.
	if clientKey != "" {
		cached, err := s.idempotency.GetCachedResponse(ctx, clientKey, Namespace)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency cache: %w", err)
		}
		if cached != nil {
			s.logger.Info("Duplicate webhook delivery absorbed",
				zap.String("idempotency_key", clientKey))
			return &Result{StatusCode: cached.StatusCode, Body: cached.Body, Replayed: true}, nil
		}
	}

	if !s.verifySignature(rawBody, signature) {
		return s.respond(http.StatusUnauthorized, Response{
			Success: false,
			Message: "Invalid webhook signature",
		}), nil
	}

	evt, err := webhook.ParseInbound(rawBody)
	if err != nil {
		return s.respond(http.StatusBadRequest, Response{
			Success: false,
			Message: err.Error(),
		}), nil
	}

	key := clientKey
	if key == "" {
		key = shared.GenerateIdempotencyKey(evt.Data.VoucherID, evt.Data.Status, evt.Timestamp)
	}

	// Quick-check in front of the relational store. A marked key means this
	// delivery already processed successfully; derived-key duplicates have no
	// cached body to replay, so they are acknowledged without touching the
	// voucher. Quick-check outages fail open to the stores below.
	if s.dedupe != nil {
		seen, err := s.dedupe.IsProcessed(ctx, s.dedupeKey(key))
		if err != nil {
			s.logger.Warn("Dedupe quick-check unavailable", zap.Error(err))
		} else if seen {
			cached, err := s.idempotency.GetCachedResponse(ctx, key, Namespace)
			if err == nil && cached != nil {
				return &Result{StatusCode: cached.StatusCode, Body: cached.Body, Replayed: true}, nil
			}
			s.logger.Info("Duplicate webhook delivery absorbed",
				zap.String("idempotency_key", key))
			result := s.respond(http.StatusOK, Response{
				Success: true,
				Message: "Duplicate delivery ignored",
				Data:    &ResponseData{IdempotencyKey: key},
			})
			result.Replayed = true
			return result, nil
		}
	}

	// The audit row is written before dispatch so a trace exists even when
	// business handling below fails.
	auditRow, err := s.persistAudit(ctx, evt, signature != "")
	if err != nil {
		return nil, fmt.Errorf("failed to persist webhook event: %w", err)
	}

	if evt.Type == webhook.InboundUnknown {
		s.logger.Info("Unknown webhook event type ignored",
			zap.String("webhook_event_id", auditRow.ID.String()))
		return s.acknowledge(ctx, auditRow, key, clientKey, "Event type not handled")
	}

	if err := s.dispatch(ctx, evt, auditRow); err != nil {
		return s.dispatchFailure(ctx, evt, auditRow, err)
	}

	return s.acknowledge(ctx, auditRow, key, clientKey, "Webhook processed")
}

// Retry re-applies a stored webhook event. Rejected when the event already
// delivered; otherwise the stored payload drives the same transition again.
func (s *Service) Retry(ctx context.Context, webhookEventID uuid.UUID) (*webhook.Event, error) {
	row, err := s.events.FindByID(ctx, webhookEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook event: %w", err)
	}
	if row == nil {
		return nil, shared.ErrNotFound
	}
	if row.DeliveryStatus == webhook.DeliveryStatusDelivered {
		return nil, shared.NewDomainError("INVALID_INPUT", "Webhook event already delivered")
	}

	evt, err := webhook.ParseInbound([]byte(row.Payload))
	if err != nil {
		row.RecordAttempt(webhook.DeliveryStatusFailed, err.Error())
		if saveErr := s.events.Save(ctx, row); saveErr != nil {
			return nil, fmt.Errorf("failed to record retry outcome: %w", saveErr)
		}
		return row, nil
	}

	if dispatchErr := s.dispatch(ctx, evt, row); dispatchErr != nil {
		row.RecordAttempt(webhook.DeliveryStatusFailed, dispatchErr.Error())
	} else {
		row.RecordAttempt(webhook.DeliveryStatusDelivered, "")
	}
	if err := s.events.Save(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to record retry outcome: %w", err)
	}

	s.logger.Info("Webhook event retried",
		zap.String("webhook_event_id", row.ID.String()),
		zap.String("outcome", string(row.DeliveryStatus)),
		zap.Int("attempts", row.Attempts))
	return row, nil
}

// verifySignature checks the hex HMAC-SHA256 of the raw body in constant
// time. Only an explicit strict=false downgrade skips verification; strict
// mode with no configured secret rejects every delivery rather than running
// fail-open on a misconfiguration.
func (s *Service) verifySignature(rawBody []byte, signature string) bool {
	if !s.strict {
		s.logger.Warn("Webhook signature verification skipped",
			zap.Bool("secret_configured", s.secret != ""))
		return true
	}
	if s.secret == "" {
		s.logger.Error("Strict signature mode without a configured secret; rejecting delivery")
		return false
	}
	if signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(s.secret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (s *Service) dispatch(ctx context.Context, evt *webhook.InboundEvent, auditRow *webhook.Event) error {
	target, known := evt.Type.TargetStatus()
	if !known {
		return nil
	}

	voucherID, err := evt.VoucherID()
	if err != nil {
		return err
	}

	metadata := map[string]any{
		"webhook_event_id": auditRow.ID.String(),
		"event_type":       string(evt.Type),
	}
	if evt.Data.RedemptionMethod != "" {
		metadata["redemption_method"] = evt.Data.RedemptionMethod
	}
	if evt.Data.Reason != "" {
		metadata["reason"] = evt.Data.Reason
	}

	_, err = s.statusMonitor.TrackStatus(ctx, voucherID, target, metadata, voucher.TriggerWebhook)
	return err
}

func (s *Service) persistAudit(ctx context.Context, evt *webhook.InboundEvent, signed bool) (*webhook.Event, error) {
	var voucherID *uuid.UUID
	if id, err := evt.VoucherID(); err == nil {
		voucherID = &id
	}
	row := webhook.NewEvent(string(evt.Type), voucherID, string(evt.Raw), signed,
		webhook.DeliveryStatusPending, "")
	if err := s.events.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

// dispatchFailure marks the audit row failed and maps the error to an HTTP
// outcome. Nothing is cached so a legitimate retry can reprocess.
func (s *Service) dispatchFailure(ctx context.Context, evt *webhook.InboundEvent, auditRow *webhook.Event, dispatchErr error) (*Result, error) {
	auditRow.DeliveryStatus = webhook.DeliveryStatusFailed
	auditRow.ErrorMessage = dispatchErr.Error()
	if err := s.events.Save(ctx, auditRow); err != nil {
		s.logger.Error("Failed to record failed webhook event", zap.Error(err))
	}

	statusCode := http.StatusInternalServerError
	var domainErr *shared.DomainError
	if errors.As(dispatchErr, &domainErr) {
		switch domainErr.Code {
		case "INVALID_INPUT":
			statusCode = http.StatusBadRequest
		case "NOT_FOUND":
			statusCode = http.StatusNotFound
		case "INVALID_STATE", "CONCURRENCY_CONFLICT":
			statusCode = http.StatusConflict
		}
	}

	s.logger.Error("Webhook dispatch failed",
		zap.String("event_type", string(evt.Type)),
		zap.Int("status", statusCode),
		zap.Error(dispatchErr))

	return s.respond(statusCode, Response{
		Success: false,
		Message: dispatchErr.Error(),
		Data:    &ResponseData{WebhookEventID: auditRow.ID.String()},
	}), nil
}

// acknowledge marks the audit row delivered, builds the success response
// and, when the caller supplied an idempotency key, caches it so redelivery
// short-circuits.
func (s *Service) acknowledge(ctx context.Context, auditRow *webhook.Event, key, clientKey, message string) (*Result, error) {
	auditRow.DeliveryStatus = webhook.DeliveryStatusDelivered
	if err := s.events.Save(ctx, auditRow); err != nil {
		s.logger.Error("Failed to mark webhook event delivered", zap.Error(err))
	}

	result := s.respond(http.StatusOK, Response{
		Success: true,
		Message: message,
		Data: &ResponseData{
			WebhookEventID: auditRow.ID.String(),
			IdempotencyKey: key,
		},
	})

	if clientKey != "" {
		if err := s.idempotency.SetCachedResponse(ctx, clientKey, Namespace, result.StatusCode, result.Body, s.cacheTTL); err != nil {
			s.logger.Error("Failed to cache webhook response",
				zap.String("idempotency_key", clientKey),
				zap.Error(err))
		}
	}
	if s.dedupe != nil {
		if _, err := s.dedupe.MarkProcessed(ctx, s.dedupeKey(key), s.cacheTTL); err != nil {
			s.logger.Warn("Failed to mark dedupe key", zap.Error(err))
		}
	}
	return result, nil
}

func (s *Service) dedupeKey(key string) string {
	return Namespace + ":" + key
}

func (s *Service) respond(statusCode int, resp Response) *Result {
	body, err := json.Marshal(resp)
	if err != nil {
		// Response is a plain struct; marshalling cannot realistically fail
		body = []byte(`{"success":false,"message":"internal error"}`)
	}
	return &Result{StatusCode: statusCode, Body: string(body)}
}

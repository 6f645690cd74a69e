// Package handlers implements the REST surface over stored referral records.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/refhound/refhound/internal/extract"
	"github.com/refhound/refhound/internal/referral"
	"go.uber.org/zap"
)

// RecordHandler handles CRUD operations over referral records. Creation
// goes through the dedup gateway so API inserts honor the same uniqueness
// rules as the pipeline.
type RecordHandler struct {
	repo    referral.Repository
	gateway *referral.Gateway
	logger  *zap.Logger
}

// NewRecordHandler creates a record handler.
func NewRecordHandler(repo referral.Repository, gateway *referral.Gateway, logger *zap.Logger) *RecordHandler {
	return &RecordHandler{
		repo:    repo,
		gateway: gateway,
		logger:  logger,
	}
}

func (h *RecordHandler) CreateRecord(ctx context.Context, req *CreateRecordRequest) (*CreateRecordResponse, error) {
	expiry := req.Body.ExpirationDate
	if expiry.IsZero() {
		now := time.Now().UTC()
		expiry = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
			AddDate(0, 0, extract.DefaultExpiryDays)
	}

	cand := &referral.Candidate{
		Brand:          req.Body.Brand,
		Code:           req.Body.Code,
		Link:           req.Body.Link,
		Tags:           req.Body.Tags,
		PostDate:       req.Body.PostDate,
		ExpirationDate: expiry,
	}

	record, err := h.gateway.Ingest(ctx, cand)
	if err != nil {
		switch {
		case errors.Is(err, referral.ErrIneligible):
			return nil, huma.Error422UnprocessableEntity("brand and at least one of code or link are required")
		case errors.Is(err, referral.ErrDuplicate):
			return nil, huma.Error409Conflict("a record with this brand and code or link already exists")
		default:
			h.logger.Error("failed to create record", zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to create record")
		}
	}

	return &CreateRecordResponse{
		Status: http.StatusCreated,
		Body:   recordBody(record),
	}, nil
}

func (h *RecordHandler) GetRecord(ctx context.Context, req *GetRecordRequest) (*RecordResponse, error) {
	record, err := h.repo.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, referral.ErrNotFound) {
			return nil, huma.Error404NotFound("record not found")
		}

		h.logger.Error("failed to get record", zap.String("id", req.ID), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to get record")
	}

	return &RecordResponse{Body: recordBody(record)}, nil
}

func (h *RecordHandler) ListRecords(ctx context.Context, req *ListRecordsRequest) (*ListRecordsResponse, error) {
	filter := referral.Filter{
		Query: req.Query,
		Brand: req.Brand,
		Tag:   req.Tag,
		Valid: req.Valid,
		Limit: req.Limit,
	}

	records, err := h.repo.List(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list records", zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to list records")
	}

	resp := &ListRecordsResponse{}
	resp.Body.Records = make([]RecordBody, 0, len(records))

	for _, record := range records {
		resp.Body.Records = append(resp.Body.Records, recordBody(record))
	}

	resp.Body.Count = len(resp.Body.Records)

	return resp, nil
}

func (h *RecordHandler) UpdateRecord(ctx context.Context, req *UpdateRecordRequest) (*RecordResponse, error) {
	if req.Body.Brand == "" || (req.Body.Code == "" && req.Body.Link == "") {
		return nil, huma.Error422UnprocessableEntity("brand and at least one of code or link are required")
	}

	record, err := h.repo.Get(ctx, req.ID)
	if err != nil {
		if errors.Is(err, referral.ErrNotFound) {
			return nil, huma.Error404NotFound("record not found")
		}

		return nil, huma.Error500InternalServerError("failed to get record")
	}

	record.Brand = req.Body.Brand
	record.Code = req.Body.Code
	record.Link = req.Body.Link
	record.Tags = req.Body.Tags
	record.ExpirationDate = req.Body.ExpirationDate
	record.IsValid = req.Body.IsValid
	record.LastValidated = time.Now()

	if !req.Body.PostDate.IsZero() {
		record.PostDate = req.Body.PostDate
	}

	if err := h.repo.Update(ctx, record); err != nil {
		switch {
		case errors.Is(err, referral.ErrNotFound):
			return nil, huma.Error404NotFound("record not found")
		case errors.Is(err, referral.ErrDuplicate):
			return nil, huma.Error409Conflict("a record with this brand and code or link already exists")
		default:
			h.logger.Error("failed to update record", zap.String("id", req.ID), zap.Error(err))

			return nil, huma.Error500InternalServerError("failed to update record")
		}
	}

	return &RecordResponse{Body: recordBody(record)}, nil
}

func (h *RecordHandler) DeleteRecord(ctx context.Context, req *DeleteRecordRequest) (*DeleteRecordResponse, error) {
	if err := h.repo.Delete(ctx, req.ID); err != nil {
		if errors.Is(err, referral.ErrNotFound) {
			return nil, huma.Error404NotFound("record not found")
		}

		h.logger.Error("failed to delete record", zap.String("id", req.ID), zap.Error(err))

		return nil, huma.Error500InternalServerError("failed to delete record")
	}

	return &DeleteRecordResponse{Status: http.StatusNoContent}, nil
}

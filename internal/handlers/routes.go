package handlers

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// RegisterRoutes registers the referral record CRUD routes.
func RegisterRoutes(api huma.API, h *RecordHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "create-record",
		Method:      http.MethodPost,
		Path:        "/records",
		Summary:     "Create referral record",
		Description: "Stores a referral record directly, applying the same dedup rules as the ingest pipeline.",
		Tags:        []string{"Records"},
	}, h.CreateRecord)

	huma.Register(api, huma.Operation{
		OperationID: "list-records",
		Method:      http.MethodGet,
		Path:        "/records",
		Summary:     "List referral records",
		Tags:        []string{"Records"},
	}, h.ListRecords)

	huma.Register(api, huma.Operation{
		OperationID: "get-record",
		Method:      http.MethodGet,
		Path:        "/records/{id}",
		Summary:     "Get referral record",
		Tags:        []string{"Records"},
	}, h.GetRecord)

	huma.Register(api, huma.Operation{
		OperationID: "update-record",
		Method:      http.MethodPut,
		Path:        "/records/{id}",
		Summary:     "Update referral record",
		Tags:        []string{"Records"},
	}, h.UpdateRecord)

	huma.Register(api, huma.Operation{
		OperationID: "delete-record",
		Method:      http.MethodDelete,
		Path:        "/records/{id}",
		Summary:     "Delete referral record",
		Tags:        []string{"Records"},
	}, h.DeleteRecord)
}

package handlers

import (
	"time"

	"github.com/refhound/refhound/internal/referral"
)

// RecordBody is the wire shape of a stored referral record.
type RecordBody struct {
	ID              string    `doc:"Record identifier"                    json:"id"`
	Brand           string    `doc:"Company the offer belongs to"         example:"Acme"            json:"brand"`
	Code            string    `doc:"Referral code, if any"                example:"FRIEND20"        json:"code,omitempty"`
	Link            string    `doc:"Referral link, if any"                json:"link,omitempty"`
	Tags            []string  `doc:"Category tags"                        json:"tags,omitempty"`
	PostDate        time.Time `doc:"Date the source post was created"     json:"postDate"`
	ExpirationDate  time.Time `doc:"Date the offer expires"               json:"expirationDate"`
	IsValid         bool      `doc:"Whether the offer is still valid"     json:"isValid"`
	LastValidated   time.Time `doc:"Last validity check"                  json:"lastValidated"`
	SourcePermalink string    `doc:"Permalink of the source post, if any" json:"sourcePermalink,omitempty"`
}

func recordBody(record *referral.Record) RecordBody {
	return RecordBody{
		ID:              record.ID,
		Brand:           record.Brand,
		Code:            record.Code,
		Link:            record.Link,
		Tags:            record.Tags,
		PostDate:        record.PostDate,
		ExpirationDate:  record.ExpirationDate,
		IsValid:         record.IsValid,
		LastValidated:   record.LastValidated,
		SourcePermalink: record.SourcePermalink,
	}
}

// CreateRecordRequest is the request for creating a record directly.
type CreateRecordRequest struct {
	Body struct {
		Brand          string    `doc:"Company the offer belongs to"                 example:"Acme"     json:"brand"`
		Code           string    `doc:"Referral code; code or link must be present"  example:"FRIEND20" json:"code,omitempty"`
		Link           string    `doc:"Referral link; code or link must be present"  json:"link,omitempty"`
		Tags           []string  `doc:"Category tags"                                json:"tags,omitempty"`
		PostDate       time.Time `doc:"Post date; defaults to now"                   json:"postDate,omitempty"`
		ExpirationDate time.Time `doc:"Expiration date; defaults to 30 days from now" json:"expirationDate,omitempty"`
	}
}

// CreateRecordResponse is the response for a successfully created record.
type CreateRecordResponse struct {
	Status int
	Body   RecordBody
}

// GetRecordRequest is the request for fetching one record.
type GetRecordRequest struct {
	ID string `doc:"Record identifier" path:"id"`
}

// RecordResponse wraps a single record.
type RecordResponse struct {
	Body RecordBody
}

// ListRecordsRequest is the request for listing records with filters.
type ListRecordsRequest struct {
	Query string `doc:"Free-text match on brand, code or link" query:"q"`
	Brand string `doc:"Exact brand filter"                     query:"brand"`
	Tag   string `doc:"Tag filter"                             query:"tag"`
	Valid *bool  `doc:"Validity filter"                        query:"valid"`
	Limit int    `doc:"Maximum records to return"              query:"limit"`
}

// ListRecordsResponse wraps a page of records.
type ListRecordsResponse struct {
	Body struct {
		Records []RecordBody `json:"records"`
		Count   int          `json:"count"`
	}
}

// UpdateRecordRequest is the request for replacing a record's mutable fields.
type UpdateRecordRequest struct {
	ID   string `doc:"Record identifier" path:"id"`
	Body struct {
		Brand          string    `json:"brand"`
		Code           string    `json:"code,omitempty"`
		Link           string    `json:"link,omitempty"`
		Tags           []string  `json:"tags,omitempty"`
		PostDate       time.Time `json:"postDate,omitempty"`
		ExpirationDate time.Time `json:"expirationDate"`
		IsValid        bool      `json:"isValid"`
	}
}

// DeleteRecordRequest is the request for removing a record.
type DeleteRecordRequest struct {
	ID string `doc:"Record identifier" path:"id"`
}

// DeleteRecordResponse is the empty response for a successful delete.
type DeleteRecordResponse struct {
	Status int
}

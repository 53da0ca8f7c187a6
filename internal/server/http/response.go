package httpserver

import (
	"time"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// Response types for JSON serialization.

type compareNamesResponse struct {
	Score          float64 `json:"score"`
	CanonicalNameA string  `json:"canonical_name_a"`
	CanonicalNameB string  `json:"canonical_name_b"`
}

type nameMatchResponse struct {
	SignatureID int64   `json:"signature_id"`
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
}

type searchNamesResponse struct {
	Query     string              `json:"query"`
	BucketKey string              `json:"bucket_key"`
	Matches   []nameMatchResponse `json:"matches"`
}

type assignmentResponse struct {
	Kind          string  `json:"kind"`
	RealAuthorIDs []int64 `json:"real_author_ids,omitempty"`
	Score         float64 `json:"score"`
}

type createSignatureResponse struct {
	SignatureID int64               `json:"signature_id"`
	BucketKey   string              `json:"bucket_key"`
	Assignment  *assignmentResponse `json:"assignment,omitempty"`
}

type attributeResponse struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

type signatureResponse struct {
	SignatureID   int64               `json:"signature_id"`
	Name          string              `json:"name"`
	BucketKey     string              `json:"bucket_key"`
	Probability   float64             `json:"probability"`
	Connected     bool                `json:"connected"`
	Updated       bool                `json:"updated"`
	RealAuthorIDs []int64             `json:"real_author_ids,omitempty"`
	Attributes    []attributeResponse `json:"attributes,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

type memberResponse struct {
	SignatureID int64   `json:"signature_id"`
	Probability float64 `json:"probability"`
}

type dataPointResponse struct {
	Tag     string  `json:"tag"`
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	NumVAs  int     `json:"num_vas"`
	SumProb float64 `json:"sum_prob"`
}

type authorResponse struct {
	AuthorID  int64               `json:"author_id"`
	Members   []memberResponse    `json:"members"`
	Data      []dataPointResponse `json:"data,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Converter functions

func signatureToResponse(va *domain.VirtualAuthor, raIDs []int64) signatureResponse {
	resp := signatureResponse{
		SignatureID:   va.ID,
		Name:          va.Name,
		BucketKey:     va.BucketKey,
		Probability:   va.Probability,
		Connected:     va.Connected,
		Updated:       va.Updated,
		RealAuthorIDs: raIDs,
		CreatedAt:     va.CreatedAt,
	}
	for _, attr := range va.Attributes {
		resp.Attributes = append(resp.Attributes, attributeResponse{Tag: attr.Tag, Value: attr.Value})
	}
	return resp
}

func authorToResponse(ra *domain.RealAuthor, data []domain.RealAuthorData) authorResponse {
	resp := authorResponse{
		AuthorID:  ra.ID,
		Members:   make([]memberResponse, 0, len(ra.Members)),
		CreatedAt: ra.CreatedAt,
	}
	for _, m := range ra.Members {
		resp.Members = append(resp.Members, memberResponse{
			SignatureID: m.VirtualAuthorID,
			Probability: m.Probability,
		})
	}
	for _, d := range data {
		resp.Data = append(resp.Data, dataPointResponse{
			Tag:     d.Tag,
			Value:   d.Value,
			Count:   d.Count,
			NumVAs:  d.NumVAs,
			SumProb: d.SumProb,
		})
	}
	return resp
}

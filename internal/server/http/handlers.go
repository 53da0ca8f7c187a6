package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/helixir/author-disambiguation-service/internal/domain"
)

// Request validation constants.
const (
	maxNameLength      = 1000
	maxSearchResults   = 100
	maxAttributeCount  = 200
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// compareNamesRequest is the JSON request body for a pairwise name comparison.
type compareNamesRequest struct {
	NameA           string `json:"name_a" validate:"required,max=1000"`
	NameB           string `json:"name_b" validate:"required,max=1000"`
	InitialsPenalty bool   `json:"initials_penalty"`
	Soft            bool   `json:"soft"`
}

// createSignatureRequest is the JSON request body for registering a signature.
type createSignatureRequest struct {
	Name        string             `json:"name" validate:"required,max=1000"`
	Probability float64            `json:"probability" validate:"gte=0,lte=1"`
	Attributes  []attributePayload `json:"attributes" validate:"max=200,dive"`

	// Assign controls whether cluster assignment runs immediately. When
	// false the signature is only queued for the next batch pass.
	Assign *bool `json:"assign,omitempty"`
}

type attributePayload struct {
	Tag   string `json:"tag" validate:"required,max=100"`
	Value string `json:"value" validate:"required,max=2000"`
}

// compareNames handles POST /api/v1/names/compare.
func (s *Server) compareNames(w http.ResponseWriter, r *http.Request) {
	var req compareNamesRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	var score float64
	if req.Soft {
		score = s.comparator.SoftCompare(req.NameA, req.NameB)
	} else {
		score = s.comparator.Compare(req.NameA, req.NameB, req.InitialsPenalty)
	}

	if s.metrics != nil {
		kind := "full"
		if req.Soft {
			kind = "soft"
		}
		s.metrics.RecordComparison(kind)
	}

	writeJSON(w, http.StatusOK, compareNamesResponse{
		Score:          score,
		CanonicalNameA: s.parser.CanonicalName(req.NameA),
		CanonicalNameB: s.parser.CanonicalName(req.NameB),
	})
}

// searchNames handles GET /api/v1/names/search. It soft-compares the query
// against every stored signature in the query's last-name bucket and returns
// the matches ordered by descending score.
func (s *Server) searchNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	if len(query) > maxNameLength {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("q must be at most %d characters", maxNameLength))
		return
	}

	limit := maxSearchResults
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	bucketKey := s.parser.BucketKey(query)
	ids, err := s.store.Bucket(ctx, bucketKey)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	matches := make([]nameMatchResponse, 0, len(ids))
	for _, id := range ids {
		va, err := s.store.VirtualAuthor(ctx, id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		score := s.comparator.SoftCompare(query, va.Name)
		if score <= 0 {
			continue
		}
		matches = append(matches, nameMatchResponse{
			SignatureID: va.ID,
			Name:        va.Name,
			Score:       score,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	writeJSON(w, http.StatusOK, searchNamesResponse{
		Query:     query,
		BucketKey: bucketKey,
		Matches:   matches,
	})
}

// createSignature handles POST /api/v1/signatures. The signature is stored
// and, unless assign is false, immediately run through cluster assignment.
func (s *Server) createSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createSignatureRequest
	if !s.decodeAndValidate(w, r, &req) {
		return
	}

	va := &domain.VirtualAuthor{
		Name:        strings.TrimSpace(req.Name),
		BucketKey:   s.parser.BucketKey(req.Name),
		Probability: req.Probability,
	}
	if va.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	for _, attr := range req.Attributes {
		va.Attributes = append(va.Attributes, domain.Attribute{Tag: attr.Tag, Value: attr.Value})
	}

	vaID, err := s.store.AddVirtualAuthor(ctx, va)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := createSignatureResponse{
		SignatureID: vaID,
		BucketKey:   va.BucketKey,
	}

	if s.engine != nil && (req.Assign == nil || *req.Assign) {
		outcome, err := s.engine.Assign(ctx, vaID, false)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp.Assignment = &assignmentResponse{
			Kind:          string(outcome.Kind),
			RealAuthorIDs: outcome.RealAuthorIDs,
			Score:         outcome.Score,
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

// getSignature handles GET /api/v1/signatures/{signatureID}.
func (s *Server) getSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vaID, ok := parseID(w, chi.URLParam(r, "signatureID"), "signature_id")
	if !ok {
		return
	}

	va, err := s.store.VirtualAuthor(ctx, vaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	raIDs, err := s.store.RealAuthorsForVA(ctx, vaID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signatureToResponse(va, raIDs))
}

// getAuthor handles GET /api/v1/authors/{authorID}. It returns the cluster
// membership together with the aggregated attribute index.
func (s *Server) getAuthor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raID, ok := parseID(w, chi.URLParam(r, "authorID"), "author_id")
	if !ok {
		return
	}

	ra, err := s.store.RealAuthor(ctx, raID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	tag := r.URL.Query().Get("tag")
	data, err := s.store.RealAuthorData(ctx, raID, tag)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authorToResponse(ra, data))
}

// decodeAndValidate reads a JSON request body into dst and validates it,
// writing a 400 response on failure.
func (s *Server) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid field %s: failed on %s", f.Field(), f.Tag()))
		} else {
			writeError(w, http.StatusBadRequest, "invalid request")
		}
		return false
	}

	return true
}

// writeDomainError maps domain errors to appropriate HTTP status codes and
// writes a JSON error response. Internal error details are not leaked.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrMalformedName):
		writeError(w, http.StatusBadRequest, "malformed name")
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, domain.ErrNoHarvesters):
		writeError(w, http.StatusServiceUnavailable, "no comparison modules configured")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseID parses a positive int64 path parameter, writing a 400 error
// response if invalid.
func parseID(w http.ResponseWriter, s, fieldName string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a positive integer", fieldName))
		return 0, false
	}
	return id, true
}

// Package api exposes the ESDT lookups and the NFT processing pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"

	"github.com/tendant/simple-nft/pkg/simplenft"
	"github.com/tendant/simple-nft/pkg/simplenft/address"
	"github.com/tendant/simple-nft/pkg/simplenft/esdt"
)

// EsdtService is the subset of esdt.Service served here
type EsdtService interface {
	GetAllEsdtsForAddress(ctx context.Context, addr string) (map[string]esdt.AccountEsdt, error)
	GetAllEsdtTokens(ctx context.Context) ([]esdt.TokenProperties, error)
	GetTokenProperties(ctx context.Context, identifier string) (*esdt.TokenProperties, error)
	GetTokenSupply(ctx context.Context, identifier string) (string, error)
}

// Processor runs the enrichment of one NFT when something is stale
type Processor interface {
	ProcessIfNeeded(ctx context.Context, nft *simplenft.Nft, settings simplenft.ProcessSettings) (simplenft.ProcessStatus, error)
}

// Handler serves the HTTP API
type Handler struct {
	esdt        EsdtService
	processor   Processor
	repo        simplenft.Repository
	blobs       simplenft.BlobStore
	metrics     http.Handler
	environment string
	logger      *slog.Logger
}

// Option configures the handler
type Option func(*Handler)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMetrics mounts handler on /metrics
func WithMetrics(handler http.Handler) Option {
	return func(h *Handler) {
		h.metrics = handler
	}
}

// WithEnvironment sets the environment reported by /health. CORS is only
// opened up in development.
func WithEnvironment(environment string) Option {
	return func(h *Handler) {
		h.environment = environment
	}
}

func NewHandler(esdtService EsdtService, processor Processor, repo simplenft.Repository, blobs simplenft.BlobStore, opts ...Option) *Handler {
	h := &Handler{
		esdt:        esdtService,
		processor:   processor,
		repo:        repo,
		blobs:       blobs,
		environment: "development",
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router for every endpoint
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if h.environment == "development" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Get("/addresses/{address}/esdts", h.GetAddressEsdts)
	r.Get("/tokens", h.GetTokens)
	r.Get("/tokens/{identifier}/properties", h.GetTokenProperties)
	r.Get("/tokens/{identifier}/supply", h.GetTokenSupply)

	r.Route("/nfts", func(r chi.Router) {
		r.Post("/process", h.ProcessNft)
		r.Get("/thumbnail/{key}", h.GetThumbnail)
		r.Get("/{identifier}", h.GetNft)
	})
	return r
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status      string `json:"status"`
	Environment string `json:"environment"`
}

// Health reports that the process is serving
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{Status: "healthy", Environment: h.environment})
}

// GetAddressEsdts lists the ESDT balances of an address
func (h *Handler) GetAddressEsdts(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	if !address.IsValid(addr) {
		h.writeError(w, r, http.StatusBadRequest, "invalid address", address.ErrInvalidAddress)
		return
	}

	esdts, err := h.esdt.GetAllEsdtsForAddress(r.Context(), addr)
	if err != nil {
		h.fail(w, r, "failed to get esdts for address", err, "address", addr)
		return
	}
	render.JSON(w, r, esdts)
}

// GetTokens lists every fungible token
func (h *Handler) GetTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.esdt.GetAllEsdtTokens(r.Context())
	if err != nil {
		h.fail(w, r, "failed to list tokens", err)
		return
	}
	if tokens == nil {
		tokens = []esdt.TokenProperties{}
	}
	render.JSON(w, r, tokens)
}

// GetTokenProperties returns the decoded properties of one token
func (h *Handler) GetTokenProperties(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	props, err := h.esdt.GetTokenProperties(r.Context(), identifier)
	if err != nil {
		h.fail(w, r, "failed to get token properties", err, "identifier", identifier)
		return
	}
	if props == nil {
		h.writeError(w, r, http.StatusNotFound, "token not found", simplenft.ErrNotFound)
		return
	}
	render.JSON(w, r, props)
}

// SupplyResponse is returned by the supply endpoint
type SupplyResponse struct {
	Identifier string `json:"identifier"`
	Supply     string `json:"supply"`
}

// GetTokenSupply returns the circulating supply of a token
func (h *Handler) GetTokenSupply(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	supply, err := h.esdt.GetTokenSupply(r.Context(), identifier)
	if err != nil {
		h.fail(w, r, "failed to get token supply", err, "identifier", identifier)
		return
	}
	render.JSON(w, r, SupplyResponse{Identifier: identifier, Supply: supply})
}

// ProcessRequest asks for one NFT to be enriched
type ProcessRequest struct {
	Nft      simplenft.Nft             `json:"nft"`
	Settings simplenft.ProcessSettings `json:"settings"`
}

// ProcessResponse reports how a process request ended
type ProcessResponse struct {
	Identifier string                  `json:"identifier"`
	Status     simplenft.ProcessStatus `json:"status"`
	Nft        simplenft.Nft           `json:"nft"`
}

// ProcessNft enriches an NFT unless nothing about it is stale
func (h *Handler) ProcessNft(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Nft.Identifier == "" {
		h.writeError(w, r, http.StatusBadRequest, "nft identifier is required", simplenft.ErrInvalidMessage)
		return
	}

	status, err := h.processor.ProcessIfNeeded(r.Context(), &req.Nft, req.Settings)
	if err != nil {
		h.fail(w, r, "failed to process nft", err, "identifier", req.Nft.Identifier)
		return
	}
	render.JSON(w, r, ProcessResponse{Identifier: req.Nft.Identifier, Status: status, Nft: req.Nft})
}

// GetNft returns the last saved enrichment of an NFT
func (h *Handler) GetNft(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")

	stored, err := h.repo.GetNft(r.Context(), identifier)
	if err != nil {
		h.fail(w, r, "failed to get nft", err, "identifier", identifier)
		return
	}
	render.JSON(w, r, stored)
}

// GetThumbnail streams a stored thumbnail
func (h *Handler) GetThumbnail(w http.ResponseWriter, r *http.Request) {
	objectKey := "nfts/thumbnail/" + chi.URLParam(r, "key")

	meta, err := h.blobs.GetObjectMeta(r.Context(), objectKey)
	if err != nil {
		h.fail(w, r, "failed to get thumbnail", err, "object_key", objectKey)
		return
	}
	reader, err := h.blobs.Download(r.Context(), objectKey)
	if err != nil {
		h.fail(w, r, "failed to download thumbnail", err, "object_key", objectKey)
		return
	}
	defer reader.Close()

	if meta.ContentType != "" {
		w.Header().Set("Content-Type", meta.ContentType)
	}
	if meta.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream thumbnail", "object_key", objectKey, "error", err)
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, message string, err error, attrs ...any) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(message, append(attrs, "error", err)...)
	} else {
		h.logger.Debug(message, append(attrs, "error", err)...)
	}
	h.writeError(w, r, status, message, err)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: http.StatusText(status), Message: message + ": " + err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, simplenft.ErrNotFound), errors.Is(err, simplenft.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, address.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, simplenft.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

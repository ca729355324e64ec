package microservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/illmade-knight/go-primefactors/pkg/factorservice"
	"github.com/rs/zerolog"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Factorizer answers factor requests.
type Factorizer interface {
	Factorize(ctx context.Context, req factorservice.FactorRequest) (*factorservice.FactorResult, error)
}

// PrimalityChecker answers primality queries.
type PrimalityChecker interface {
	IsPrime(ctx context.Context, number uint64) bool
}

// PrimeResponse is the body of GET /primes/{number}. Prime is the primality
// oracle's raw answer, which is false for 0, 2 and 3 and true for 1. The
// prime flag of GET /factors/{number} is exact for every number.
type PrimeResponse struct {
	RequestID string `json:"request_id"`
	Number    uint64 `json:"number,string"`
	Prime     bool   `json:"prime"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
}

// FactorServer serves factorizations and primality checks over HTTP.
type FactorServer struct {
	*BaseServer
	factorizer Factorizer
	oracle     PrimalityChecker
	logger     zerolog.Logger
}

// NewFactorServer creates a server with the factor routes registered.
func NewFactorServer(cfg *BaseConfig, factorizer Factorizer, oracle PrimalityChecker, logger zerolog.Logger) (*FactorServer, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if factorizer == nil || oracle == nil {
		return nil, errors.New("factorizer and oracle cannot be nil")
	}

	logger = logger.With().Str("component", "FactorServer").Logger()
	s := &FactorServer{
		BaseServer: NewBaseServer(logger, cfg.HTTPPort),
		factorizer: factorizer,
		oracle:     oracle,
		logger:     logger,
	}
	s.Mux().Handle("GET /factors/{number}", withRequestID(http.HandlerFunc(s.handleFactors)))
	s.Mux().Handle("GET /primes/{number}", withRequestID(http.HandlerFunc(s.handlePrimes)))
	return s, nil
}

// Start starts the HTTP server. ctx is unused; Shutdown stops the server.
func (s *FactorServer) Start(_ context.Context) error {
	return s.BaseServer.Start()
}

func (s *FactorServer) handleFactors(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get(RequestIDHeader)
	number, err := factorservice.ParseNumber(r.PathValue("number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{RequestID: requestID, Error: err.Error()})
		return
	}

	result, err := s.factorizer.Factorize(r.Context(), factorservice.FactorRequest{RequestID: requestID, Number: number})
	if err != nil {
		s.logger.Error().Err(err).Str("request_id", requestID).Uint64("number", number).Msg("Factorization failed.")
		writeJSON(w, http.StatusInternalServerError, errorResponse{RequestID: requestID, Error: "factorization failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handlePrimes answers with the oracle's cached verdict. See PrimeResponse
// for the small numbers it misreports.
func (s *FactorServer) handlePrimes(w http.ResponseWriter, r *http.Request) {
	requestID := w.Header().Get(RequestIDHeader)
	number, err := factorservice.ParseNumber(r.PathValue("number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{RequestID: requestID, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, PrimeResponse{
		RequestID: requestID,
		Number:    number,
		Prime:     s.oracle.IsPrime(r.Context(), number),
	})
}

// withRequestID echoes the caller's X-Request-ID, or assigns a new one.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)+1))
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	enclave "github.com/edgebitio/nitro-enclaves-sdk-go"
	"github.com/mdlayher/vsock"
	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/voucherauction/config"
	"github.com/cloudx-io/voucherauction/core"
	"github.com/cloudx-io/voucherauction/logging"
	"github.com/cloudx-io/voucherauction/settlementapi"
)

// EnclaveServer accepts settlement requests over vsock.
type EnclaveServer struct {
	port        uint32
	maxWorkers  int
	readTimeout time.Duration
	policy      core.VoucherPolicy

	// newAttester is replaced in tests
	newAttester func() (EnclaveAttester, error)
}

// NewEnclaveServer builds a server from validated configuration.
func NewEnclaveServer(cfg *config.Config) *EnclaveServer {
	return &EnclaveServer{
		port:        cfg.Enclave.Port,
		maxWorkers:  cfg.Enclave.MaxWorkers,
		readTimeout: time.Duration(cfg.Enclave.ReadTimeoutSeconds) * time.Second,
		policy:      cfg.Policy(),
		newAttester: getEnclaveAttester,
	}
}

// getEnclaveAttester attempts to get the NSM attester, returns error if not available
func getEnclaveAttester() (EnclaveAttester, error) {
	handle, err := enclave.GetOrInitializeHandle()
	if err != nil {
		return nil, fmt.Errorf("NSM not available: %w", err)
	}
	return handle, nil
}

// Start listens on the configured vsock port and serves connections with a
// bounded worker pool. Connections arriving while the pool is full are closed
// immediately.
func (s *EnclaveServer) Start() error {
	listener, err := vsock.Listen(s.port, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close listener")
		}
	}()

	log.Info().Uint32("port", s.port).Int("max_workers", s.maxWorkers).Msg("settlement enclave listening on vsock")

	return s.serve(listener)
}

func (s *EnclaveServer) serve(listener net.Listener) error {
	semaphore := make(chan struct{}, s.maxWorkers)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				log.Error().Err(err).Msg("failed to accept vsock connection")
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				s.handleConnection(c)
			}(conn)
		default:
			rejectedConnectionsTotal.Inc()
			log.Warn().Msg("no workers available, rejecting connection")
			if err := conn.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close rejected connection")
			}
		}
	}
}

// handleConnection reads one request until the peer half-closes, answers it
// and closes the connection.
func (s *EnclaveServer) handleConnection(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("panic recovered in handleConnection")
		}
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close connection")
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Error().Err(err).Msg("failed to read request")
		return
	}

	response := s.route(buf.Bytes())

	if err := json.NewEncoder(conn).Encode(response); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// route dispatches a raw request by its type field.
func (s *EnclaveServer) route(raw []byte) any {
	var baseReq struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &baseReq); err != nil {
		log.Error().Err(err).Msg("failed to decode base request")
		return errorResponse("Failed to decode request: %v", err)
	}

	log.Info().Str("type", baseReq.Type).Msg("received request")

	switch baseReq.Type {
	case settlementapi.TypePing:
		return settlementapi.PongResponse{
			Type:      settlementapi.TypePong,
			Message:   "Settlement enclave is healthy",
			Timestamp: time.Now().Unix(),
		}

	case settlementapi.TypeSettlementRequest:
		var req settlementapi.SettlementRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			log.Error().Err(err).Msg("failed to decode settlement request")
			return errorResponse("Failed to decode settlement request: %v", err)
		}

		attester, err := s.newAttester()
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize TEE attester")
			return errorResponse("Failed to initialize TEE attester: %v", err)
		}
		return ProcessSettlement(attester, req, s.policy)

	default:
		return errorResponse("Unknown request type: %s", baseReq.Type)
	}
}

func errorResponse(format string, args ...any) settlementapi.ErrorResponse {
	return settlementapi.ErrorResponse{
		Type:    settlementapi.TypeError,
		Message: fmt.Sprintf(format, args...),
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := os.Getenv("SETTLEMENT_CONFIG"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(".env"); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(2)
	}

	logging.Setup(cfg.App.LogLevel)

	if cfg.App.MetricsAddr != "" {
		serveMetrics(cfg.App.MetricsAddr)
		log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}

	server := NewEnclaveServer(cfg)
	if err := server.Start(); err != nil {
		log.Fatal().Err(err).Msg("settlement enclave stopped")
	}
}

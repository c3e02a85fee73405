package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/jonathanchw/kipu-bank/internal/events/kafka"
	"github.com/jonathanchw/kipu-bank/internal/interfaces"
	"github.com/jonathanchw/kipu-bank/internal/runtime"
	"github.com/jonathanchw/kipu-bank/internal/storage/memory"
	"github.com/jonathanchw/kipu-bank/internal/storage/postgres"
	"github.com/jonathanchw/kipu-bank/internal/vault"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(getenv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)

	globalCap := mustAmount(logger, "VAULT_GLOBAL_CAP")
	withdrawLimit := mustAmount(logger, "VAULT_WITHDRAW_LIMIT")

	var journal interfaces.JournalStore = memory.NewJournalStore()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			logger.Fatal().Err(err).Msg("opening postgres")
		}
		journal = postgres.NewJournalStore(db)
		logger.Info().Msg("journal: postgres")
	} else {
		logger.Info().Msg("journal: in-memory")
	}

	var publisher interfaces.EventPublisher = logPublisher{log: logger}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher = kafka.NewPublisher(strings.Split(brokers, ","), getenv("KAFKA_TOPIC", "vault_events"))
		logger.Info().Str("brokers", brokers).Msg("events: kafka")
	}

	var agent interfaces.TransferAgent = logTransferAgent{log: logger}
	if url := os.Getenv("SETTLEMENT_URL"); url != "" {
		agent = &webhookTransferAgent{
			url:    url,
			client: &http.Client{Timeout: 10 * time.Second},
		}
		logger.Info().Str("url", url).Msg("transfers: settlement webhook")
	}

	v := vault.New(globalCap, withdrawLimit, agent, publisher)
	rt := runtime.New(v, journal, logger)

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	http.HandleFunc("/deposit", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		principal, amount, ok := decodeCall(w, r)
		if !ok {
			return
		}

		if err := rt.Deposit(r.Context(), principal, amount, r.Header.Get("Idempotency-Key")); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"status":"deposited"}`))
	})

	http.HandleFunc("/withdraw", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		principal, amount, ok := decodeCall(w, r)
		if !ok {
			return
		}

		if err := rt.Withdraw(r.Context(), principal, amount, r.Header.Get("Idempotency-Key")); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"withdrawn"}`))
	})

	http.HandleFunc("/transfer", transferHandler(rt))

	http.HandleFunc("/balance", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		principal := r.URL.Query().Get("principal")
		if principal == "" {
			http.Error(w, "principal is a mandatory field", http.StatusBadRequest)
			return
		}

		response := struct {
			Principal string `json:"principal"`
			Balance   string `json:"balance"`
		}{
			Principal: principal,
			Balance:   rt.Balance(principal).Dec(),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	})

	http.HandleFunc("/entries", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		entries, err := rt.Entries()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(entries)
	})

	addr := getenv("HTTP_ADDR", ":8080")
	logger.Info().Str("addr", addr).Str("global_cap", globalCap.Dec()).
		Str("withdraw_limit", withdrawLimit.Dec()).Msg("starting vault server")
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// transferHandler is the selector-based arrival path: deposits and
// withdrawals route to their operations, an empty selector is a plain
// arrival, anything else falls back to the unknown-payload path.
func transferHandler(rt *runtime.Runtime) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var req struct {
			Selector  string `json:"selector"`
			Principal string `json:"principal"`
			Amount    string `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Principal == "" {
			http.Error(w, "principal is a mandatory field", http.StatusBadRequest)
			return
		}
		amount, err := uint256.FromDecimal(req.Amount)
		if err != nil {
			http.Error(w, "invalid amount", http.StatusBadRequest)
			return
		}

		call := runtime.Call{
			Selector:       req.Selector,
			Principal:      req.Principal,
			Amount:         amount,
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		}
		if err := rt.Dispatch(r.Context(), call); err != nil {
			writeError(w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"accepted"}`))
	}
}

func decodeCall(w http.ResponseWriter, r *http.Request) (string, *uint256.Int, bool) {
	var req struct {
		Principal string `json:"principal"`
		Amount    string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return "", nil, false
	}
	if req.Principal == "" {
		http.Error(w, "principal is a mandatory field", http.StatusBadRequest)
		return "", nil, false
	}
	amount, err := uint256.FromDecimal(req.Amount)
	if err != nil {
		http.Error(w, "invalid amount", http.StatusBadRequest)
		return "", nil, false
	}
	return req.Principal, amount, true
}

// writeError maps the vault failure taxonomy onto HTTP statuses and a
// machine-readable error kind.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	kind := "internal"

	var (
		capErr      *vault.CapExceededError
		balErr      *vault.InsufficientBalanceError
		limitErr    *vault.LimitExceededError
		transferErr *vault.TransferFailedError
	)
	switch {
	case errors.Is(err, vault.ErrZeroAmount):
		status, kind = http.StatusBadRequest, "zero_amount"
	case errors.Is(err, vault.ErrReentrancyBlocked):
		status, kind = http.StatusConflict, "reentrancy_blocked"
	case errors.As(err, &capErr):
		status, kind = http.StatusUnprocessableEntity, "cap_exceeded"
	case errors.As(err, &balErr):
		status, kind = http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.As(err, &limitErr):
		status, kind = http.StatusUnprocessableEntity, "limit_exceeded"
	case errors.As(err, &transferErr):
		status, kind = http.StatusBadGateway, "transfer_failed"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": err.Error(),
	})
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustAmount(log zerolog.Logger, key string) *uint256.Int {
	raw := os.Getenv(key)
	if raw == "" {
		log.Fatal().Str("var", key).Msg("required environment variable is not set")
	}
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		log.Fatal().Err(err).Str("var", key).Msg("invalid amount")
	}
	return amount
}

// logPublisher is the no-broker stand-in for the Kafka publisher: events are
// written to the structured log instead of a topic.
type logPublisher struct {
	log zerolog.Logger
}

func (p logPublisher) Publish(topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.log.Info().Str("topic", topic).RawJSON("event", data).Msg("event published")
	return nil
}

// webhookTransferAgent delivers outbound value by notifying an external
// settlement endpoint. Any non-2xx response counts as a failed transfer.
type webhookTransferAgent struct {
	url    string
	client *http.Client
}

func (a *webhookTransferAgent) Transfer(ctx context.Context, principal string, amount *uint256.Int) error {
	body, err := json.Marshal(map[string]string{
		"principal": principal,
		"amount":    amount.Dec(),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("settlement endpoint returned %s", resp.Status)
	}
	return nil
}

// logTransferAgent acknowledges every outbound transfer and records it in
// the log. Useful for local runs without a settlement endpoint.
type logTransferAgent struct {
	log zerolog.Logger
}

func (a logTransferAgent) Transfer(ctx context.Context, principal string, amount *uint256.Int) error {
	a.log.Info().Str("principal", principal).Str("amount", amount.Dec()).Msg("value released")
	return nil
}

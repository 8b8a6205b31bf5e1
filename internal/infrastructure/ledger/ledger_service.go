// Package ledger implements the ports.Ledger interface over the node's
// JSON-RPC endpoint, with a circuit breaker guarding the engine against a
// flapping node and a rate limit on the program-account scan.
package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"

	"github.com/madnet-labs/madd/internal/core/domain"
	"github.com/madnet-labs/madd/internal/core/ports"
	"github.com/madnet-labs/madd/pkg/derivation"
	"github.com/madnet-labs/madd/pkg/madprogram"
)

const (
	// maxScansPerSecond caps the program-account scans; every scan walks
	// the node's full account set and is the one deliberately expensive
	// call the engine issues.
	maxScansPerSecond = 2

	requestTimeout = 15 * time.Second

	codeRecordNotFound = -32004
)

// feeShortfallPattern extracts the have/need amounts from the node's
// rendering of the program's fee-shortfall error.
var feeShortfallPattern = regexp.MustCompile(
	`insufficient fee funds: have (\d+), need (\d+)`,
)

type service struct {
	rpcURL      string
	wsURL       string
	httpClient  *http.Client
	cb          *gobreaker.CircuitBreaker
	scanLimiter ratelimit.Limiter
	requestID   uint64
}

// NewService returns a ports.Ledger talking JSON-RPC to rpcURL. wsURL is the
// websocket endpoint used for confirmation subscriptions and may be empty if
// WaitForConfirmation is never called.
func NewService(rpcURL, wsURL string) ports.Ledger {
	return &service{
		rpcURL:      rpcURL,
		wsURL:       wsURL,
		httpClient:  &http.Client{Timeout: requestTimeout},
		cb:          newBreaker(),
		scanLimiter: ratelimit.New(maxScansPerSecond),
	}
}

func (s *service) GetAccount(
	ctx context.Context, address derivation.Address,
) ([]byte, error) {
	var result struct {
		Data string `json:"data"`
	}
	if err := s.call(
		ctx, "getAccount", []interface{}{address.String()}, &result,
	); err != nil {
		return nil, err
	}

	buf, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding account data: %w", err)
	}
	return buf, nil
}

func (s *service) FindProgramAccounts(
	ctx context.Context, discriminator []byte,
) (map[derivation.Address][]byte, error) {
	s.scanLimiter.Take()

	var result []struct {
		Address string `json:"address"`
		Data    string `json:"data"`
	}
	if err := s.call(
		ctx, "findProgramAccounts",
		[]interface{}{base64.StdEncoding.EncodeToString(discriminator)},
		&result,
	); err != nil {
		return nil, err
	}

	out := make(map[derivation.Address][]byte, len(result))
	for _, record := range result {
		address, err := derivation.NewAddressFromString(record.Address)
		if err != nil {
			return nil, fmt.Errorf("decoding account address: %w", err)
		}
		buf, err := base64.StdEncoding.DecodeString(record.Data)
		if err != nil {
			return nil, fmt.Errorf("decoding account data: %w", err)
		}
		out[address] = buf
	}
	return out, nil
}

func (s *service) GetBalance(
	ctx context.Context, address derivation.Address,
) (uint64, error) {
	return s.balance(ctx, "getBalance", address)
}

func (s *service) GetTokenBalance(
	ctx context.Context, address derivation.Address,
) (uint64, error) {
	return s.balance(ctx, "getTokenBalance", address)
}

func (s *service) SubmitTransaction(
	ctx context.Context, tx *madprogram.Transaction,
) (string, error) {
	if !tx.IsSigned() {
		return "", fmt.Errorf("transaction is not signed")
	}

	var txid string
	if err := s.call(
		ctx, "submitTransaction",
		[]interface{}{base64.StdEncoding.EncodeToString(tx.Serialize())},
		&txid,
	); err != nil {
		return "", err
	}

	// the node acks on receipt; finality comes from the confirmation
	// subscription. Without a websocket endpoint the ack is all there is.
	if s.wsURL != "" {
		if err := s.WaitForConfirmation(ctx, txid); err != nil {
			return "", err
		}
	}
	return txid, nil
}

// WaitForConfirmation blocks until the node notifies the transaction's
// confirmation over the websocket endpoint or the context expires.
func (s *service) WaitForConfirmation(ctx context.Context, txid string) error {
	dialer := websocket.DefaultDialer
	conn, _, err := dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, err)
	}
	defer conn.Close()

	subscribe := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      atomic.AddUint64(&s.requestID, 1),
		"method":  "signatureSubscribe",
		"params":  []interface{}{txid},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	}
	for {
		var notification struct {
			Method string `json:"method"`
			Params struct {
				Result struct {
					Signature string `json:"signature"`
					Err       string `json:"err"`
				} `json:"result"`
			} `json:"params"`
		}
		if err := conn.ReadJSON(&notification); err != nil {
			return fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, err)
		}
		if notification.Method != "signatureNotification" ||
			notification.Params.Result.Signature != txid {
			continue
		}
		if notification.Params.Result.Err != "" {
			return errors.New(notification.Params.Result.Err)
		}
		return nil
	}
}

func (s *service) balance(
	ctx context.Context, method string, address derivation.Address,
) (uint64, error) {
	var result struct {
		Amount uint64 `json:"amount"`
	}
	if err := s.call(
		ctx, method, []interface{}{address.String()}, &result,
	); err != nil {
		return 0, err
	}
	return result.Amount, nil
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// call posts one JSON-RPC request. Transport and node failures go through
// the circuit breaker and come back as ErrLedgerUnavailable; application
// level RPC errors are mapped to the domain taxonomy without counting
// against the breaker.
func (s *service) call(
	ctx context.Context, method string, params []interface{}, result interface{},
) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&s.requestID, 1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	res, err := s.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(
			ctx, http.MethodPost, s.rpcURL, bytes.NewReader(body),
		)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		var parsed rpcResponse
		if err := json.Unmarshal(buf, &parsed); err != nil {
			return nil, err
		}
		return &parsed, nil
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("%w: circuit breaker open", domain.ErrLedgerUnavailable)
		}
		return fmt.Errorf("%w: %s", domain.ErrLedgerUnavailable, err)
	}

	parsed := res.(*rpcResponse)
	if parsed.Error != nil {
		return mapRPCError(parsed.Error)
	}
	if result != nil {
		if err := json.Unmarshal(parsed.Result, result); err != nil {
			return fmt.Errorf("decoding rpc result: %w", err)
		}
	}
	return nil
}

func mapRPCError(rpcErr *rpcError) error {
	if rpcErr.Code == codeRecordNotFound {
		return domain.ErrRecordNotFound
	}
	if m := feeShortfallPattern.FindStringSubmatch(rpcErr.Message); m != nil {
		have, herr := strconv.ParseUint(m[1], 10, 64)
		need, nerr := strconv.ParseUint(m[2], 10, 64)
		if herr == nil && nerr == nil {
			return &ports.FeeShortfallError{Have: have, Need: need}
		}
	}
	return fmt.Errorf("rpc error %d: %s", rpcErr.Code, rpcErr.Message)
}

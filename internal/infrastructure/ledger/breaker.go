package ledger

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	// breakerMinRequests is the number of observed requests below which the
	// breaker never trips, so a single failed call on a quiet engine does
	// not open it.
	breakerMinRequests = 10
	// breakerFailingRatio is the failure ratio at which the breaker opens.
	breakerFailingRatio = 0.6
	// breakerCooldown is how long the breaker stays open before probing the
	// node again with a half-open request.
	breakerCooldown = 20 * time.Second
)

func newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger-rpc",
		Timeout: breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return int(counts.Requests) >= breakerMinRequests &&
				ratio >= breakerFailingRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("ledger rpc circuit breaker changed state")
		},
	})
}

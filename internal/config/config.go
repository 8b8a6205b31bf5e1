package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/spf13/viper"
)

const (
	// DatadirKey is the local data directory storing the contract replica
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// RPCURLKey is the http(s) url of the ledger node's JSON-RPC endpoint
	RPCURLKey = "RPC_URL"
	// WSURLKey is the ws(s) url of the ledger node's websocket endpoint, used
	// for transaction-confirmation subscriptions
	WSURLKey = "WS_URL"
	// SlippageBpsKey is the slippage tolerance in basis points attached to
	// forward swap quotes
	SlippageBpsKey = "SLIPPAGE_BPS"
	// FeeBufferKey is the amount of fee currency, in its smallest unit, bought
	// on top of every detected shortfall by the auto-replenish path
	FeeBufferKey = "FEE_BUFFER"
	// SigningKeyKey is the hex-encoded 32-byte private key of the signer. If
	// unset a fresh ephemeral key is generated at startup
	SigningKeyKey = "SIGNING_KEY"
	// NoPersistenceKey keeps the contract replica in memory only, for
	// throwaway sessions
	NoPersistenceKey = "NO_PERSISTENCE"

	DbLocation = "db"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("madd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("MADD")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(RPCURLKey, "http://localhost:8899")
	vip.SetDefault(WSURLKey, "ws://localhost:8900")
	vip.SetDefault(SlippageBpsKey, 50)
	vip.SetDefault(FeeBufferKey, 500)
	vip.SetDefault(NoPersistenceKey, false)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetUint64(key string) uint64 {
	return vip.GetUint64(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the replica database directory, or the empty string when
// persistence is disabled, which the store interprets as in-memory.
func GetDbDir() string {
	if GetBool(NoPersistenceKey) {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if !validateNodeURL(GetString(RPCURLKey), "http") {
		return fmt.Errorf(
			"%s must be a valid http(s) url", RPCURLKey,
		)
	}
	if !validateNodeURL(GetString(WSURLKey), "ws") {
		return fmt.Errorf(
			"%s must be a valid ws(s) url", WSURLKey,
		)
	}

	slippage := GetInt(SlippageBpsKey)
	if slippage < 0 || slippage >= 10000 {
		return fmt.Errorf("%s must be in the [0, 10000) range", SlippageBpsKey)
	}

	if signingKey := GetString(SigningKeyKey); signingKey != "" {
		buf, err := hex.DecodeString(signingKey)
		if err != nil || len(buf) != 32 {
			return fmt.Errorf(
				"%s must be a hex-encoded 32-byte key", SigningKeyKey,
			)
		}
	}

	return nil
}

func initDatadir() error {
	if GetBool(NoPersistenceKey) {
		return nil
	}
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

func validateNodeURL(nodeURL, scheme string) bool {
	pattern := fmt.Sprintf(`^%s(s)?:\/\/.+$`, scheme)
	matched, _ := regexp.MatchString(pattern, nodeURL)

	return matched
}

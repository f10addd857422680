package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ap3pp3rs94/elpomega/pkg/elpclient"
	elperrors "github.com/Ap3pp3rs94/elpomega/pkg/errors"
)

var (
	targetURL  string
	secretKey  string
	httpClient = &http.Client{Timeout: 10 * time.Second}
)

var rootCmd = &cobra.Command{
	Use:   "elpattack",
	Short: "Adversarial test client for an ELP-Ω-protected resource",
	Long: `elpattack drives the canonical ELP-Ω attack scenarios against a
running server: a legitimate request, a Zeckendorf-violating mask, a
forged signature, a replayed nonce, and a statistical timing scan. Each
scenario reports the HTTP status (always expected to be 200) and the
observed latency and body, since the protocol gives an attacker nothing
else to go on.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&targetURL, "target", "http://127.0.0.1:8080/api/v1/resource", "URL of the protected resource")
	rootCmd.PersistentFlags().StringVar(&secretKey, "secret", "", "shared secret (only needed for scenarios that sign correctly)")
	_ = viper.BindPFlag("target", rootCmd.PersistentFlags().Lookup("target"))
	_ = viper.BindPFlag("secret", rootCmd.PersistentFlags().Lookup("secret"))

	rootCmd.AddCommand(legitCmd)
	rootCmd.AddCommand(zeckendorfCmd)
	rootCmd.AddCommand(forgedCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(markersCmd)
}

func requireClient() (*elpclient.Client, error) {
	if secretKey == "" {
		return nil, wrapErr(elperrors.ClientInvalidConfig, fmt.Errorf("--secret is required for this scenario"))
	}
	client, err := elpclient.New(secretKey)
	if err != nil {
		return nil, wrapErr(elperrors.ClientInvalidConfig, err)
	}
	return client, nil
}

// wrapErr renders err under one of pkg/errors' operational codes, the same
// machinery cmd/elpomega-server uses at startup, so a scenario failure
// prints a stable code instead of an ad hoc string.
func wrapErr(code elperrors.Code, err error) error {
	env := elperrors.NewEnvelope(code, err.Error(), "", nil)
	return fmt.Errorf("[%s] %s", env.Error.Code, env.Error.Message)
}

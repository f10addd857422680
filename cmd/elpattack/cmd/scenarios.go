package cmd

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	elperrors "github.com/Ap3pp3rs94/elpomega/pkg/errors"
)

// shadowMarkers mirrors internal/engine/shadow_test.go's
// TestGenerateShadowHasNoMarker word list: strings a SHADOW response must
// never contain, since their presence would let an attacker distinguish a
// synthetic payload from a real one by content alone.
var shadowMarkers = []string{"shadow", "fake", "synthetic", "dummy", "vault"}

const (
	headerMask      = "X-ELP-Mask"
	headerSeal      = "X-ELP-Seal"
	headerTimestamp = "X-ELP-Timestamp"
	headerNonce     = "X-ELP-Nonce"
)

func send(req *http.Request) (status int, body string, latency time.Duration, err error) {
	start := time.Now()
	resp, err := httpClient.Do(req)
	latency = time.Since(start)
	if err != nil {
		return 0, "", latency, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b), latency, nil
}

func report(scenario string, status int, body string, latency time.Duration) {
	snippet := body
	if len(snippet) > 80 {
		snippet = snippet[:80] + "..."
	}
	fmt.Printf("--- %s ---\n", scenario)
	fmt.Printf("status: %d\n", status)
	fmt.Printf("latency: %.2fms\n", float64(latency.Microseconds())/1000)
	fmt.Printf("body: %s\n", snippet)
	if status != http.StatusOK {
		fmt.Println("[!] unexpected non-200 status: the protocol promises 200 regardless of reality")
	}
	fmt.Println()
}

var legitCmd = &cobra.Command{
	Use:   "legit",
	Short: "Send a correctly-signed request with a valid (non-adjacent-bit) mask",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		client.Sign(req, 5) // 101b: bits 0 and 2, never adjacent
		status, body, lat, err := send(req)
		if err != nil {
			return err
		}
		report("legitimate request", status, body, lat)
		return nil
	},
}

var zeckendorfCmd = &cobra.Command{
	Use:   "zeckendorf",
	Short: "Send a mask with adjacent set bits, violating the Mask Validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequest(http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		// 6 = 110b, bits 1 and 2 are adjacent. No valid seal can save this:
		// the Mask Validator runs first and short-circuits to SHADOW.
		req.Header.Set(headerMask, "6")
		req.Header.Set(headerTimestamp, strconv.FormatInt(time.Now().UnixMilli(), 10))
		req.Header.Set(headerNonce, uuid.New().String())
		req.Header.Set(headerSeal, "irrelevant-seal-value")

		status, body, lat, err := send(req)
		if err != nil {
			return err
		}
		report("Zeckendorf violation (mask=6)", status, body, lat)
		return nil
	},
}

var forgedCmd = &cobra.Command{
	Use:   "forged",
	Short: "Send a valid mask with a corrupted signature",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}
		req, err := http.NewRequest(http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		client.Sign(req, 5)
		// Corrupt the seal after signing; mask and timestamp stay valid so
		// only the Seal Computer's comparison should reject this.
		req.Header.Set(headerSeal, strings.Repeat("A", len(req.Header.Get(headerSeal))))

		status, body, lat, err := send(req)
		if err != nil {
			return err
		}
		report("forged signature", status, body, lat)
		return nil
	},
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Send a valid request, then replay the exact same headers",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}
		first, err := http.NewRequest(http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		client.Sign(first, 5)

		status1, body1, lat1, err := send(first)
		if err != nil {
			return err
		}
		report("replay: original request", status1, body1, lat1)

		second, err := http.NewRequest(http.MethodGet, targetURL, nil)
		if err != nil {
			return err
		}
		second.Header = first.Header.Clone()

		status2, body2, lat2, err := send(second)
		if err != nil {
			return err
		}
		report("replay: duplicate nonce", status2, body2, lat2)
		return nil
	},
}

// latencyStats summarizes one population of latency samples.
type latencyStats struct {
	n              int
	mean, variance float64
	min, max       time.Duration
}

func summarize(samples []time.Duration) latencyStats {
	s := latencyStats{n: len(samples)}
	if s.n == 0 {
		return s
	}
	s.min, s.max = samples[0], samples[0]
	var sum float64
	for _, d := range samples {
		if d < s.min {
			s.min = d
		}
		if d > s.max {
			s.max = d
		}
		sum += float64(d.Microseconds()) / 1000
	}
	s.mean = sum / float64(s.n)

	if s.n > 1 {
		var sqDiff float64
		for _, d := range samples {
			diff := float64(d.Microseconds())/1000 - s.mean
			sqDiff += diff * diff
		}
		s.variance = sqDiff / float64(s.n-1)
	}
	return s
}

func (s latencyStats) print(label string) {
	fmt.Printf("%-7s n=%-4d min=%.2fms max=%.2fms mean=%.2fms stddev=%.2fms\n",
		label, s.n,
		float64(s.min.Microseconds())/1000, float64(s.max.Microseconds())/1000,
		s.mean, math.Sqrt(s.variance))
}

// welchT computes Welch's t-statistic for two independent samples, the
// standard two-sample test for whether two distributions differ without
// assuming equal variance. Applied to PRIME vs SHADOW latency, a
// |t| near zero is the Timing Equalizer working: an attacker sampling both
// populations gains no statistical leverage to tell them apart.
func welchT(a, b latencyStats) float64 {
	se := math.Sqrt(a.variance/float64(a.n) + b.variance/float64(b.n))
	if se == 0 {
		return 0
	}
	return (a.mean - b.mean) / se
}

func sampleLatencies(n int, build func(i int) (*http.Request, error)) ([]time.Duration, error) {
	out := make([]time.Duration, 0, n)
	for i := 0; i < n; i++ {
		req, err := build(i)
		if err != nil {
			return nil, err
		}
		_, _, lat, err := send(req)
		if err != nil {
			return nil, err
		}
		out = append(out, lat)
	}
	return out, nil
}

func signedPrimeRequest(client interface {
	Sign(*http.Request, int64)
}) (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	client.Sign(req, 5)
	return req, nil
}

func zeckendorfViolationRequest() (*http.Request, error) {
	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerMask, "6")
	req.Header.Set(headerTimestamp, strconv.FormatInt(time.Now().UnixMilli(), 10))
	req.Header.Set(headerNonce, uuid.New().String())
	req.Header.Set(headerSeal, "irrelevant-seal-value")
	return req, nil
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Two-sample timing comparison: PRIME vs SHADOW latency, with a Welch t-statistic",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := requireClient()
		if err != nil {
			return err
		}
		n, _ := cmd.Flags().GetInt("count")

		primeLat, err := sampleLatencies(n, func(i int) (*http.Request, error) {
			return signedPrimeRequest(client)
		})
		if err != nil {
			return wrapErr(elperrors.DependencyDown, err)
		}
		shadowLat, err := sampleLatencies(n, func(i int) (*http.Request, error) {
			return zeckendorfViolationRequest()
		})
		if err != nil {
			return wrapErr(elperrors.DependencyDown, err)
		}

		prime, shadow := summarize(primeLat), summarize(shadowLat)
		t := welchT(prime, shadow)

		fmt.Printf("--- timing sweep (n=%d per population) ---\n", n)
		prime.print("PRIME")
		shadow.print("SHADOW")
		fmt.Printf("welch t-statistic: %.4f\n", t)
		if math.Abs(t) < 2.0 {
			fmt.Println("|t| < 2: PRIME and SHADOW are not distinguishable by timing at this sample size")
		} else {
			fmt.Println("|t| >= 2: the two populations may be distinguishable by timing, check EqualizeLowMs/EqualizeHighMs")
		}
		return nil
	},
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Scan SHADOW response bodies for forbidden marker strings",
	RunE: func(cmd *cobra.Command, args []string) error {
		n, _ := cmd.Flags().GetInt("count")

		found := map[string]int{}
		for i := 0; i < n; i++ {
			req, err := zeckendorfViolationRequest()
			if err != nil {
				return err
			}
			_, body, _, err := send(req)
			if err != nil {
				return wrapErr(elperrors.DependencyDown, err)
			}
			lower := strings.ToLower(body)
			for _, marker := range shadowMarkers {
				if strings.Contains(lower, marker) {
					found[marker]++
				}
			}
		}

		fmt.Printf("--- marker scan (n=%d SHADOW responses) ---\n", n)
		if len(found) == 0 {
			fmt.Printf("no forbidden markers (%s) found in any response\n", strings.Join(shadowMarkers, ", "))
			return nil
		}
		for _, marker := range shadowMarkers {
			if c := found[marker]; c > 0 {
				fmt.Printf("[!] marker %q appeared in %d/%d responses\n", marker, c, n)
			}
		}
		return fmt.Errorf("shadow responses leaked %d distinct marker(s)", len(found))
	},
}

func init() {
	sweepCmd.Flags().Int("count", 20, "number of requests to send per population")
	markersCmd.Flags().Int("count", 20, "number of SHADOW responses to scan")
}

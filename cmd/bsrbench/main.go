// bsrbench runs every accelerated kernel against the host reference and
// reports verification error and timing. It exists to smoke-test a device
// installation and to compare backends, not to benchmark the host code.
package main

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/ghodss/yaml"
	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flowaccel/bsrkernel/hostref"
	"github.com/flowaccel/bsrkernel/runner"
	"github.com/flowaccel/bsrkernel/types"
)

// Case is one benchmark system, read from the YAML case file.
type Case struct {
	Name         string `yaml:"Name"`
	BlockRows    int    `yaml:"BlockRows"`
	BlockSize    int    `yaml:"BlockSize"`
	BlocksPerRow int    `yaml:"BlocksPerRow"`
	Repetitions  int    `yaml:"Repetitions"`
	Seed         int64  `yaml:"Seed"`
}

type CaseFile struct {
	Cases []Case `yaml:"Cases"`
}

func defaultCases() []Case {
	return []Case{
		{Name: "scalar-small", BlockRows: 1000, BlockSize: 1, BlocksPerRow: 6, Repetitions: 10, Seed: 1},
		{Name: "blocked-small", BlockRows: 1000, BlockSize: 3, BlocksPerRow: 6, Repetitions: 10, Seed: 2},
		{Name: "blocked-large", BlockRows: 50000, BlockSize: 3, BlocksPerRow: 7, Repetitions: 20, Seed: 3},
	}
}

var rootCmd = &cobra.Command{
	Use:   "bsrbench",
	Short: "Verify and time the accelerated block-sparse kernels",
	Long: `bsrbench builds block-sparse test systems, runs the device kernels on
them, checks the results against the host reference computation, and reports
per-kernel timings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("cases")
		deviceProps, _ := cmd.Flags().GetString("device")
		verbosity, _ := cmd.Flags().GetInt("verbosity")
		profileRun, _ := cmd.Flags().GetBool("profile")

		if profileRun {
			defer profile.Start(profile.ProfilePath(".")).Stop()
		}

		cases := defaultCases()
		if cfgFile != "" {
			data, err := os.ReadFile(cfgFile)
			if err != nil {
				return fmt.Errorf("could not read case file: %w", err)
			}
			var cf CaseFile
			if err := yaml.Unmarshal(data, &cf); err != nil {
				return fmt.Errorf("could not parse case file: %w", err)
			}
			cases = cf.Cases
		}

		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := runner.NewContext(runner.Config{
			DeviceProps: deviceProps,
			Logger:      logger,
		})
		defer ctx.Free()
		if !ctx.Available() {
			return fmt.Errorf("no device backend available")
		}
		if err := ctx.Init(verbosity); err != nil {
			return err
		}
		fmt.Printf("device mode: %s, warp width: %d\n", ctx.Mode(), ctx.WarpWidth())

		for _, c := range cases {
			if err := runCase(ctx, c); err != nil {
				return fmt.Errorf("case %s: %w", c.Name, err)
			}
		}
		return nil
	},
}

func runCase(ctx *runner.Context, c Case) error {
	if c.Repetitions < 1 {
		c.Repetitions = 1
	}
	host := types.RandomBSR(c.BlockRows, c.BlockSize, c.BlocksPerRow, c.Seed)
	n := host.Rows()

	a, err := ctx.UploadMatrix(host)
	if err != nil {
		return err
	}
	defer a.Free()

	xh := randVec(n, c.Seed+100)
	bh := randVec(n, c.Seed+101)

	x, err := ctx.NewVectorFrom(xh)
	if err != nil {
		return err
	}
	defer x.Free()
	y, err := ctx.NewVector(n)
	if err != nil {
		return err
	}
	defer y.Free()
	rhs, err := ctx.NewVectorFrom(bh)
	if err != nil {
		return err
	}
	defer rhs.Free()

	// spmv
	start := time.Now()
	for r := 0; r < c.Repetitions; r++ {
		if err := ctx.SpMV(a, x, y); err != nil {
			return err
		}
	}
	spmvTime := time.Since(start) / time.Duration(c.Repetitions)

	got := make([]float64, n)
	if err := y.Download(got); err != nil {
		return err
	}
	want := make([]float64, n)
	hostref.SpMV(host, xh, want)
	spmvErr := maxRelDiff(want, got)

	// residual
	start = time.Now()
	for r := 0; r < c.Repetitions; r++ {
		if err := ctx.Residual(a, x, rhs, y); err != nil {
			return err
		}
	}
	resTime := time.Since(start) / time.Duration(c.Repetitions)

	if err := y.Download(got); err != nil {
		return err
	}
	hostref.Residual(host, xh, bh, want)
	resErr := maxRelDiff(want, got)

	fmt.Printf("%-16s Nb=%-7d bs=%d  spmv %10v (maxrel %.2e)  residual %10v (maxrel %.2e)\n",
		c.Name, c.BlockRows, c.BlockSize, spmvTime, spmvErr, resTime, resErr)

	if spmvErr > 1e-12 || resErr > 1e-12 {
		return fmt.Errorf("verification failed: spmv maxrel %e, residual maxrel %e", spmvErr, resErr)
	}
	return nil
}

func randVec(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.Float64()*2 - 1
	}
	return v
}

func maxRelDiff(want, got []float64) float64 {
	max := 0.0
	for i := range want {
		d := math.Abs(want[i] - got[i])
		if s := math.Abs(want[i]); s > 1 {
			d /= s
		}
		if d > max {
			max = d
		}
	}
	return max
}

func main() {
	rootCmd.Flags().String("cases", "", "YAML case file; empty runs the built-in cases")
	rootCmd.Flags().String("device", "", `OCCA device properties JSON, e.g. {"mode": "CUDA", "device_id": 0}`)
	rootCmd.Flags().Int("verbosity", 0, "verbosity level; >= 4 logs per-kernel timings")
	rootCmd.Flags().Bool("profile", false, "write a CPU profile to the working directory")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

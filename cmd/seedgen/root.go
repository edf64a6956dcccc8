package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"brightsteps-backend-go/internal/services"
)

var rootCmd = &cobra.Command{
	Use:   "seedgen",
	Short: "Write synthetic lesson seed CSVs, one file per country",
	Long: `seedgen expands the embedded curriculum into deterministic lesson rows
and writes lessons-<country>.csv files ready for a bulk database import.

Flags can also be set through SEEDGEN_COUNTRIES, SEEDGEN_OUT, SEEDGEN_YEARS
and SEEDGEN_NOW.`,
	SilenceUsage: true,
	RunE:         runSeedgen,
}

func init() {
	rootCmd.Flags().StringSlice("countries", []string{"AU", "NZ", "GB", "US"}, "country codes to export")
	rootCmd.Flags().String("out", "seed", "output directory")
	rootCmd.Flags().IntSlice("years", nil, "year levels to include (default: every year in the curriculum)")
	rootCmd.Flags().String("now", "", "RFC 3339 timestamp stamped on every row (default: current time)")

	viper.SetEnvPrefix("SEEDGEN")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(rootCmd.Flags())
}

type seedOptions struct {
	Countries []string
	OutDir    string
	Years     []int
	Now       time.Time
}

func loadOptions() (seedOptions, error) {
	opts := seedOptions{
		OutDir: viper.GetString("out"),
		Years:  viper.GetIntSlice("years"),
		Now:    time.Now(),
	}
	for _, raw := range viper.GetStringSlice("countries") {
		for _, code := range strings.Split(raw, ",") {
			if code = strings.TrimSpace(code); code != "" {
				opts.Countries = append(opts.Countries, code)
			}
		}
	}
	if len(opts.Countries) == 0 {
		return opts, fmt.Errorf("no countries given")
	}
	if raw := strings.TrimSpace(viper.GetString("now")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return opts, fmt.Errorf("invalid --now: %w", err)
		}
		opts.Now = parsed
	}
	return opts, nil
}

func runSeedgen(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions()
	if err != nil {
		return err
	}
	curriculum, err := services.LoadCurriculum()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return err
	}
	for _, country := range opts.Countries {
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		path, count, err := writeCountry(curriculum, country, opts)
		if err != nil {
			return fmt.Errorf("%s: %w", country, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows -> %s\n", strings.ToUpper(country), count, path)
	}
	return nil
}

func writeCountry(curriculum services.Curriculum, country string, opts seedOptions) (string, int, error) {
	profile, ok := services.CountryProfileFor(country)
	if !ok {
		return "", 0, fmt.Errorf("unsupported country")
	}
	rows, err := curriculum.Rows(profile.Code, opts.Years, opts.Now)
	if err != nil {
		return "", 0, err
	}
	path := filepath.Join(opts.OutDir, "lessons-"+strings.ToLower(profile.Code)+".csv")
	file, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	if err := services.WriteLessonsCSV(file, rows); err != nil {
		_ = file.Close()
		return "", 0, err
	}
	return path, len(rows), file.Close()
}

// Command medlens-score ranks symptoms against a knowledge-base directory
// and prints the outcome as JSON.
//
// Usage:
//
//	medlens-score -dir data "itching, skin_rash" nodal_skin_eruptions
//	medlens-score -dir data -image-label "Ringworm (Fungal)" -image-prob 0.8
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kailas-cloud/medlens"
	logpkg "github.com/kailas-cloud/medlens/internal/logger"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("medlens-score", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dir := fs.String("dir", "data", "knowledge-base directory")
	format := fs.String("format", "csv", "table format: csv or parquet")
	allow := fs.String("allow", "", "comma-separated disease allow-list (default: built-in list)")
	imageLabel := fs.String("image-label", "", "classifier label of an analyzed image")
	imageProb := fs.Float64("image-prob", 0, "classifier probability in [0,1]")
	verbose := fs.Bool("v", false, "log knowledge-base loading")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	opts := []medlens.Option{medlens.WithFormat(*format)}
	if *allow != "" {
		opts = append(opts, medlens.WithAllowList(splitList(*allow)...))
	}
	if *verbose {
		logger, err := logpkg.NewLogger("local")
		if err != nil {
			_, _ = fmt.Fprintln(stderr, err)
			return 1
		}
		defer func() { _ = logger.Sync() }()
		opts = append(opts, medlens.WithLogger(logger))
	}

	engine, err := medlens.Open(*dir, opts...)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	var img *medlens.ImageResult
	if *imageLabel != "" {
		img = &medlens.ImageResult{Label: *imageLabel, Probability: *imageProb}
	}

	res, err := engine.Diagnose(fs.Args(), img)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

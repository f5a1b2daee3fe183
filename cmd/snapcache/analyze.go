package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/snapcache/client"
	"github.com/unkn0wn-root/snapcache/fault"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze IMAGE...",
	Short: "Analyze product photos",
	Long: `Send up to 4 JPEG or PNG photos to the vision API and print the result as JSON.

Arguments are image files or data URIs. Results are cached by the photos'
content, so analyzing the same photos again does not call the API.`,
	Args: cobra.RangeArgs(1, 4),
	RunE: withApp(runAnalyze),
}

var listingCmd = &cobra.Command{
	Use:   "listing VISION_JSON",
	Short: "Generate marketplace listings",
	Long: `Generate marketplace listings from a vision result, as printed by "analyze".
Pass "-" to read the vision result from standard input.`,
	Args: cobra.ExactArgs(1),
	RunE: withApp(runListing),
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(listingCmd)
}

func runAnalyze(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	images, err := loadImages(args)
	if err != nil {
		return err
	}
	res, err := a.cached.Vision(ctx, images)
	if err != nil {
		return explain(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func runListing(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
	var vision client.VisionResult
	if err := readJSON(args[0], cmd.InOrStdin(), &vision); err != nil {
		return err
	}
	res, err := a.cached.Listings(ctx, vision)
	if err != nil {
		return explain(err)
	}
	return printJSON(cmd.OutOrStdout(), res)
}

func loadImages(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		img, err := loadImage(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// loadImage returns arg unchanged if it is already a data URI, otherwise
// the file's content as one.
func loadImage(arg string) (string, error) {
	if strings.HasPrefix(arg, "data:") {
		return arg, nil
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	return dataURI(b), nil
}

func dataURI(b []byte) string {
	mime := http.DetectContentType(b)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(b)
}

func readJSON(path string, stdin io.Reader, v any) error {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// explain prefixes err with the message a user would be shown for it.
func explain(err error) error {
	m := fault.Message(err)
	if m.Retryable {
		return fmt.Errorf("%s: %s (retryable): %w", m.Title, m.Body, err)
	}
	return fmt.Errorf("%s: %s: %w", m.Title, m.Body, err)
}

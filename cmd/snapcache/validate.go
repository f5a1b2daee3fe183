package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/snapcache/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check prices and photos locally",
	Long:  `Run the same checks the client applies before calling the API, without calling it.`,
}

var validatePriceCmd = &cobra.Command{
	Use:   "price VALUE",
	Short: "Validate and normalize a price",
	Long:  `Parse a user-entered price such as "12,50" and print it rounded to cents.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runValidatePrice,
}

var validateImagesCmd = &cobra.Command{
	Use:   "images IMAGE...",
	Short: "Validate photos for upload",
	Long: `Check photo count, format and size. With --marketplace, also check the
marketplace's photo requirements.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runValidateImages,
}

var marketplace string

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.AddCommand(validatePriceCmd)
	validateCmd.AddCommand(validateImagesCmd)

	validateImagesCmd.Flags().StringVarP(&marketplace, "marketplace", "m", "", "marketplace to check against (vinted, ebay, subito)")
}

func runValidatePrice(cmd *cobra.Command, args []string) error {
	r := validate.Price(args[0])
	if err := r.Err(); err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%.2f\n", r.Normalized)
	if r.Warning != "" {
		fmt.Fprintf(out, "warning: %s\n", r.Warning)
	}
	return nil
}

func runValidateImages(cmd *cobra.Command, args []string) error {
	images, err := loadImages(args)
	if err != nil {
		return err
	}
	if err := validate.Images(images).Err(); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d image(s) ok\n", len(images))
	if marketplace == "" {
		return nil
	}

	checks := validate.MarketplaceImages(marketplace, len(images))
	for _, c := range checks {
		fmt.Fprintf(out, "  [%s] %s\n", c.Level, c.Text)
	}
	if !validate.Passed(checks) {
		return fmt.Errorf("photos do not meet %s requirements", marketplace)
	}
	return nil
}

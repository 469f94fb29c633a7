package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/assetdesk/assetdesk/internal/license"
)

func newLicenseCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Generate and inspect license keys",
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("LICENSE_SECRET"), "shared license secret (defaults to $LICENSE_SECRET)")

	var company string
	var days int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Issue a license key for a company",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := licenseService(secret)
			if err != nil {
				return err
			}
			key, err := svc.GenerateKey(company, days)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	generate.Flags().StringVar(&company, "company", "", "licensed company name")
	generate.Flags().IntVar(&days, "days", 365, "validity in days")
	_ = generate.MarkFlagRequired("company")

	inspect := &cobra.Command{
		Use:   "inspect <key>",
		Short: "Decrypt a license key and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := licenseService(secret)
			if err != nil {
				return err
			}
			payload, err := svc.Inspect(args[0])
			if err != nil {
				return err
			}
			out := struct {
				license.Payload
				Expired bool `json:"expired"`
			}{Payload: payload, Expired: !payload.Expiration.After(time.Now())}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.AddCommand(generate, inspect)
	return cmd
}

func licenseService(secret string) (*license.Service, error) {
	if secret == "" {
		return nil, errors.New("license secret required: pass --secret or set LICENSE_SECRET")
	}
	cipher, err := license.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return license.NewService(nil, cipher, license.Options{}), nil
}

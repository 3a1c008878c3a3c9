// Copyright The Notary Project Authors.
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/payrollkit/stamp"
	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/crypto/cryptoutil"
	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/internal/file"
	"github.com/spf13/cobra"
)

type signOptions struct {
	output  string
	tsr     string
	caFile  string
	subject audit.Subject
}

func newSignCommand(global *globalOptions) *cobra.Command {
	opts := &signOptions{}
	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Obtain a time-stamp token for a file",
		Long: `Obtain an RFC 3161 time-stamp token over the SHA-256 digest of a file.

The token is written as JSON. A failure leaves the document untouched; it
can be stamped again later.

Examples:
  stamp sign payslip.pdf -o payslip.tsr.json
  stamp sign payslip.pdf --document payslip-2026-03 --employee E042 --company C7 --tsr payslip.tsr`,
		Args: cobra.ExactArgs(1),
		RunE: global.run(func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, global, opts, args[0])
		}),
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "token JSON output file (default stdout)")
	cmd.Flags().StringVar(&opts.tsr, "tsr", "", "raw DER time-stamp token output file")
	cmd.Flags().StringVar(&opts.caFile, "ca-file", "", "PEM CA certificates trusted for TSA connections (default system roots)")
	cmd.Flags().StringVar(&opts.subject.DocumentID, "document", "", "document ID recorded in the audit log")
	cmd.Flags().StringVar(&opts.subject.EmployeeID, "employee", "", "employee ID recorded in the audit log")
	cmd.Flags().StringVar(&opts.subject.CompanyID, "company", "", "company ID recorded in the audit log")
	return cmd
}

func runSign(cmd *cobra.Command, global *globalOptions, opts *signOptions, path string) error {
	ctx := cmd.Context()
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	env, err := global.loadEnvironment(ctx)
	if err != nil {
		return err
	}
	if err := global.openSink(); err != nil {
		return err
	}
	stampOpts := stamp.Options{Sink: global.sink}
	if opts.caFile != "" {
		if stampOpts.RootCAs, err = cryptoutil.NewCertPool(opts.caFile); err != nil {
			return err
		}
	}
	stamper, err := stamp.New(env, stampOpts)
	if err != nil {
		return err
	}
	token, err := stamper.Stamp(ctx, content, stamp.StampOptions{Subject: opts.subject})
	if err != nil {
		return err
	}

	if opts.output == "" {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(token); err != nil {
			return err
		}
	} else if err := file.Save(opts.output, token); err != nil {
		return err
	}
	if opts.tsr != "" {
		if err := os.WriteFile(opts.tsr, token.Raw, 0644); err != nil {
			return err
		}
	}
	global.logger.Infof("Stamped %s at %s by %s (serial %s)", path, token.GenTime.Format("2006-01-02T15:04:05Z07:00"), token.TSAName, token.SerialNumber)
	return nil
}

// readToken reads a token written by the sign command.
func readToken(path string) (*timestamp.Token, error) {
	var token timestamp.Token
	if err := file.Load(path, &token); err != nil {
		return nil, fmt.Errorf("invalid token file: %w", err)
	}
	return &token, nil
}

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
	"errors"
	"fmt"
	"os"

	"github.com/payrollkit/stamp"
	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/payrollkit/stamp/internal/pkix"
	"github.com/spf13/cobra"
)

// errMismatch makes the command exit non-zero.
var errMismatch = errors.New("the file does not match the time-stamp token")

type verifyOptions struct {
	token   string
	tsaName string
	subject audit.Subject
}

func newVerifyCommand(global *globalOptions) *cobra.Command {
	opts := &verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify <file> --token <token.json>",
		Short: "Verify a file against a time-stamp token",
		Long: `Verify that a time-stamp token was issued over the SHA-256 digest of a file.

No TSA is contacted and no configuration is needed. The token signature is
not validated. With --tsa-name, the subject of the TSA certificate in the
token must carry every attribute of the given distinguished name.

Examples:
  stamp verify payslip.pdf --token payslip.tsr.json
  stamp verify payslip.pdf --token payslip.tsr.json --tsa-name "O=DigiCert, Inc.,C=US"`,
		Args: cobra.ExactArgs(1),
		RunE: global.run(func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, global, opts, args[0])
		}),
	}
	cmd.Flags().StringVar(&opts.token, "token", "", "token JSON file written by sign")
	cmd.Flags().StringVar(&opts.tsaName, "tsa-name", "", "distinguished name the TSA certificate subject must match")
	cmd.Flags().StringVar(&opts.subject.DocumentID, "document", "", "document ID recorded in the audit log")
	cmd.Flags().StringVar(&opts.subject.EmployeeID, "employee", "", "employee ID recorded in the audit log")
	cmd.Flags().StringVar(&opts.subject.CompanyID, "company", "", "company ID recorded in the audit log")
	cmd.MarkFlagRequired("token")
	return cmd
}

func runVerify(cmd *cobra.Command, global *globalOptions, opts *verifyOptions, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	token, err := readToken(opts.token)
	if err != nil {
		return err
	}
	if err := global.openSink(); err != nil {
		return err
	}
	ok, err := stamp.Verify(cmd.Context(), global.sink, content, token, opts.subject)
	if err != nil {
		return err
	}
	if !ok {
		return errMismatch
	}
	if opts.tsaName != "" {
		if err := checkTSAName(token, opts.tsaName); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s matches the time-stamp token issued at %s by %s\n", path, token.GenTime.Format("2006-01-02T15:04:05Z07:00"), token.TSAName)
	return nil
}

// checkTSAName matches the subject of the TSA certificate embedded in the
// token against the distinguished name want.
func checkTSAName(token *timestamp.Token, want string) error {
	signed, err := timestamp.ParseSignedToken(token.Raw)
	if err != nil {
		return fmt.Errorf("cannot check the TSA name: %w", err)
	}
	cert := signed.SigningCertificate()
	if cert == nil {
		return errors.New("cannot check the TSA name: the token carries no TSA certificate")
	}
	ok, err := pkix.MatchName(want, cert.Subject.String())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("TSA %q does not match %q", cert.Subject, want)
	}
	return nil
}

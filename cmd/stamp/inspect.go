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
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/spf13/cobra"
)

func newInspectCommand(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <token.json>",
		Short: "Print the fields of a time-stamp token",
		Long: `Print the fields of a time-stamp token written by sign. The raw token is
decoded as well when it is a CMS SignedData.

Example:
  stamp inspect payslip.tsr.json`,
		Args: cobra.ExactArgs(1),
		RunE: global.run(func(cmd *cobra.Command, args []string) error {
			token, err := readToken(args[0])
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token, global)
		}),
	}
}

func printToken(out io.Writer, token *timestamp.Token, global *globalOptions) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Status:\t%s\n", token.Status)
	fmt.Fprintf(w, "Generation time:\t%s\n", token.GenTime.Format(time.RFC3339Nano))
	fmt.Fprintf(w, "Serial number:\t%s\n", token.SerialNumber)
	fmt.Fprintf(w, "Policy:\t%s\n", token.PolicyOID)
	fmt.Fprintf(w, "Hash algorithm:\t%s\n", token.HashAlgorithm)
	fmt.Fprintf(w, "Message imprint:\t%s\n", token.MessageImprintHex)
	fmt.Fprintf(w, "TSA:\t%s\n", token.TSAName)
	if token.Accuracy != nil {
		fmt.Fprintf(w, "Accuracy:\t%v\n", token.Accuracy.Duration())
	}

	signed, err := timestamp.ParseSignedToken(token.Raw)
	if err != nil {
		global.logger.Debugf("Raw token not decoded: %v", err)
		fmt.Fprintf(w, "Raw token:\t%d bytes, not a CMS SignedData\n", len(token.Raw))
		return w.Flush()
	}
	fmt.Fprintf(w, "Raw token:\t%d bytes\n", len(token.Raw))
	if info, err := signed.Info(); err == nil {
		fmt.Fprintf(w, "Ordering:\t%t\n", info.Ordering)
		if info.Nonce != nil {
			fmt.Fprintf(w, "Nonce:\t%s\n", info.Nonce.Text(16))
		}
	}
	if cert := signed.SigningCertificate(); cert != nil {
		fmt.Fprintf(w, "Signer:\t%s\n", cert.Subject)
		fmt.Fprintf(w, "Signer issuer:\t%s\n", cert.Issuer)
		fmt.Fprintf(w, "Signer valid until:\t%s\n", cert.NotAfter.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintf(w, "Signer:\tcertificate not included\n")
	}
	return w.Flush()
}

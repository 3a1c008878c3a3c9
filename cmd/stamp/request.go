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
	"os"

	"github.com/payrollkit/stamp/crypto/timestamp"
	"github.com/spf13/cobra"
)

func newRequestCommand(global *globalOptions) *cobra.Command {
	var output string
	var digestHex string
	var opts timestamp.RequestOptions
	cmd := &cobra.Command{
		Use:   "request [file]",
		Short: "Create a DER encoded time-stamp request",
		Long: `Create an RFC 3161 TimeStampReq over the SHA-256 digest of a file, for
submission with other tools.

Examples:
  stamp request payslip.pdf -o payslip.tsq
  stamp request --digest sha256:88b53da8f97a02fb651fb748d4b74dd9865b8c938ed27303c0588d2dfa11b1d9 -o payslip.tsq
  curl -H "Content-Type: application/timestamp-query" --data-binary @payslip.tsq https://tsa.example.com > payslip.tsr`,
		Args: cobra.MaximumNArgs(1),
		RunE: global.run(func(cmd *cobra.Command, args []string) error {
			var d timestamp.Digest
			switch {
			case digestHex != "":
				var err error
				if d, err = timestamp.ParseDigestHex(digestHex); err != nil {
					return err
				}
			case len(args) == 1:
				content, err := os.ReadFile(args[0])
				if err != nil {
					return err
				}
				d = timestamp.ComputeDigest(content)
			default:
				return errors.New("a file or --digest is required")
			}

			req, der, err := timestamp.BuildRequest(d, opts)
			if err != nil {
				return err
			}
			global.logger.Debugf("Built request for digest %s with nonce %s", d, req.Nonce)
			if output == "" {
				_, err := cmd.OutOrStdout().Write(der)
				return err
			}
			return os.WriteFile(output, der, 0644)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "request output file (default stdout)")
	cmd.Flags().StringVar(&digestHex, "digest", "", "SHA-256 digest to stamp instead of a file, as hex or sha256:<hex>")
	cmd.Flags().StringVar(&opts.PolicyOID, "policy", "", "TSA policy OID to request")
	cmd.Flags().BoolVar(&opts.NoCertReq, "no-cert-req", false, "do not ask the TSA to include its certificate")
	return cmd
}

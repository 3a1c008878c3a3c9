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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/docker/go-metrics"
	"github.com/payrollkit/stamp/audit"
	"github.com/payrollkit/stamp/audit/sqlite"
	"github.com/payrollkit/stamp/config"
	"github.com/payrollkit/stamp/dir"
	"github.com/payrollkit/stamp/log"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath  string
	environment string
	logLevel    string
	auditDB     string
	metricsAddr string

	// lookupEnv reads the process environment.
	lookupEnv func(string) (string, bool)

	logger  *logrus.Logger
	sink    audit.Sink
	closers []io.Closer
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{lookupEnv: os.LookupEnv}
	cmd := &cobra.Command{
		Use:   "stamp",
		Short: "RFC 3161 time-stamping for approved payroll documents",
		Long: `Obtain, verify and inspect RFC 3161 time-stamp tokens for payroll documents.

The active environment is read from the configuration file. Secrets can be
injected with the STAMP_TSA_URL, STAMP_MTLS_CERT, STAMP_MTLS_PASSWORD and
STAMP_MOCK environment variables.

Examples:
  # Stamp a payslip with the default environment
  stamp sign payslip.pdf --document payslip-2026-03 --employee E042 -o payslip.tsr.json

  # Verify the payslip against its token
  stamp verify payslip.pdf --token payslip.tsr.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "configuration file (default "+dir.ConfigFile()+")")
	flags.StringVar(&opts.environment, "env", "", "environment to use (default from the configuration file)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.auditDB, "audit-db", dir.AuditDBPath(), "SQLite audit database, empty to disable")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "address to expose Prometheus metrics on while the command runs")

	cmd.AddCommand(
		newSignCommand(opts),
		newVerifyCommand(opts),
		newRequestCommand(opts),
		newInspectCommand(opts),
	)
	return cmd
}

// run wraps a RunE function so that the resources opened by setup are
// released whether or not the command fails.
func (opts *globalOptions) run(fn func(cmd *cobra.Command, args []string) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if closeErr := opts.close(); err == nil {
				err = closeErr
			}
		}()
		return fn(cmd, args)
	}
}

// setup installs the logger and the metrics endpoint.
func (opts *globalOptions) setup(cmd *cobra.Command) (err error) {
	defer func() {
		if err != nil {
			opts.close()
		}
	}()

	logger, err := log.NewLogrus(cmd.ErrOrStderr(), opts.logLevel)
	if err != nil {
		return err
	}
	opts.logger = logger
	cmd.SetContext(log.WithLogger(cmd.Context(), logger))

	opts.sink = audit.Discard
	if opts.metricsAddr != "" {
		listener, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			return fmt.Errorf("listen on metrics address: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Handler: mux}
		go func() {
			if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warnf("Metrics server stopped: %v", err)
			}
		}()
		logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
		opts.closers = append(opts.closers, server)
	}
	return nil
}

// openSink opens the audit database for the commands that record audit
// entries. The database is closed with the other resources.
func (opts *globalOptions) openSink() error {
	if opts.auditDB == "" {
		return nil
	}
	db, err := sqlite.Open(opts.auditDB)
	if err != nil {
		return fmt.Errorf("open audit database: %w", err)
	}
	opts.sink = db
	opts.closers = append(opts.closers, db)
	return nil
}

func (opts *globalOptions) close() error {
	var errs []error
	for i := len(opts.closers) - 1; i >= 0; i-- {
		errs = append(errs, opts.closers[i].Close())
	}
	opts.closers = nil
	return errors.Join(errs...)
}

// loadEnvironment loads the selected environment and applies the
// environment variable overrides.
func (opts *globalOptions) loadEnvironment(ctx context.Context) (config.Environment, error) {
	path := opts.configPath
	if path == "" {
		path = dir.ConfigFile()
	}
	f, err := config.Load(path)
	if err != nil {
		return config.Environment{}, fmt.Errorf("load configuration: %w", err)
	}
	env, err := f.Environment(opts.environment)
	if err != nil {
		return config.Environment{}, err
	}
	env, err = env.ApplyEnvOverrides(opts.lookupEnv)
	if err != nil {
		return config.Environment{}, err
	}
	log.GetLogger(ctx).Debugf("Using environment %q from %s", env.Name, path)
	return env, nil
}

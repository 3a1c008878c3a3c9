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

package timestamp

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"time"

	iox "github.com/payrollkit/stamp/internal/io"
)

// The length of a regular TSA response with certificates is usually less than 10 KiB.
const maxBodyLength = 1 * 1024 * 1024 // 1 MiB

// HTTPOptions configures an HTTPTimestamper.
type HTTPOptions struct {
	// Timeout bounds a single request. No timeout is applied if zero.
	Timeout time.Duration

	// ClientCertificate is presented to the TSA for mutual TLS if set.
	ClientCertificate *tls.Certificate

	// RootCAs overrides the system roots used to verify the TSA.
	RootCAs *x509.CertPool

	// Transport is used instead of a dedicated transport if set. The TLS
	// options above are ignored in that case.
	Transport http.RoundTripper
}

// HTTPTimestamper is an HTTP-based timestamper. It is safe for concurrent
// use and keeps its own connection pool.
type HTTPTimestamper struct {
	client   *http.Client
	endpoint string
	timeout  time.Duration
}

// NewHTTPTimestamper creates an HTTP-based timestamper with the endpoint
// provided by the TSA.
func NewHTTPTimestamper(endpoint string, opts HTTPOptions) (*HTTPTimestamper, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, ConfigError{Msg: "invalid TSA URL", Detail: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ConfigError{Msg: fmt.Sprintf("TSA URL %q must be an absolute http or https URL", endpoint)}
	}
	if opts.Timeout < 0 {
		return nil, ConfigError{Msg: "negative timeout"}
	}

	rt := opts.Transport
	if rt == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if opts.ClientCertificate != nil || opts.RootCAs != nil {
			tlsConfig := &tls.Config{
				MinVersion: tls.VersionTLS12,
				RootCAs:    opts.RootCAs,
			}
			if opts.ClientCertificate != nil {
				tlsConfig.Certificates = []tls.Certificate{*opts.ClientCertificate}
			}
			transport.TLSClientConfig = tlsConfig
		}
		rt = transport
	}
	return &HTTPTimestamper{
		client:   &http.Client{Transport: rt},
		endpoint: endpoint,
		timeout:  opts.Timeout,
	}, nil
}

// Endpoint returns the TSA URL.
func (ts *HTTPTimestamper) Endpoint() string {
	return ts.endpoint
}

// Timestamp sends the request to the remote TSA server for timestamping.
// Reference: RFC 3161 3.4 Time-Stamp Protocol via HTTP
func (ts *HTTPTimestamper) Timestamp(ctx context.Context, req *Request) (*Token, error) {
	reqBytes, err := req.MarshalBinary()
	if err != nil {
		return nil, err
	}
	respBytes, err := ts.Send(ctx, reqBytes)
	if err != nil {
		return nil, err
	}
	return req.ParseResponse(respBytes)
}

// Send posts a DER-encoded TimeStampReq and returns the DER-encoded
// TimeStampResp.
//
// Cancellation of ctx is returned as ctx.Err(). An expired per-request
// timeout is a TransportError.
func (ts *HTTPTimestamper) Send(ctx context.Context, body []byte) ([]byte, error) {
	reqCtx := ctx
	if ts.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, ts.timeout)
		defer cancel()
	}

	// prepare for http request
	hReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, ts.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ConfigError{Msg: "invalid TSA URL", Detail: err}
	}
	hReq.Header.Set("Content-Type", MediaTypeQuery)
	hReq.Header.Set("Accept", MediaTypeReply)

	// send the request to the remote TSA server
	hResp, err := ts.client.Do(hReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, TransportError{Msg: "request to " + ts.endpoint + " failed", Detail: err}
	}
	defer hResp.Body.Close()

	// verify HTTP response
	if hResp.StatusCode != http.StatusOK {
		return nil, ProtocolError{Msg: "unexpected HTTP status " + hResp.Status, HTTPStatus: hResp.StatusCode}
	}
	contentType := hResp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || (mediaType != MediaTypeReply && mediaType != "application/octet-stream") {
		return nil, ProtocolError{Msg: fmt.Sprintf("unexpected response content type %q", contentType), HTTPStatus: hResp.StatusCode}
	}

	// read response
	respBytes, err := iox.ReadAll(hResp.Body, maxBodyLength)
	if err != nil {
		if errors.Is(err, iox.ErrLimitExceeded) {
			return nil, ProtocolError{Msg: "response body exceeds 1 MiB", HTTPStatus: hResp.StatusCode}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, TransportError{Msg: "failed to read response", Detail: err}
	}
	return respBytes, nil
}

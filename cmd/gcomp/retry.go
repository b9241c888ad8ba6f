// Copyright 2026 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/grailbio/base/file"
)

// createS3FileWithRetry opens an s3:// object for writing, retrying the
// open itself (transient throttling/connection errors are common against
// S3) with a capped exponential backoff. The returned Writer is not
// wrapped: a mid-write failure surfaces to the caller directly, the same
// way file.Create's own Writer does for any other backend.
func createS3FileWithRetry(ctx context.Context, name string) (io.Writer, func(context.Context) error, error) {
	var (
		f   file.File
		err error
	)
	eb := backoff.NewExponentialBackOff()
	eb.MaxElapsedTime = 30 * time.Second
	policy := backoff.WithMaxRetries(eb, 5)

	op := func() error {
		f, err = file.Create(ctx, name)
		return err
	}
	if berr := backoff.Retry(op, backoff.WithContext(policy, ctx)); berr != nil {
		return nil, nil, berr
	}
	return f.Writer(ctx), f.Close, nil
}

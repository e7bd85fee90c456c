// SPDX-License-Identifier: EPL-2.0

package samplecache

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptySample     = errors.New("decoded sample is empty")
)

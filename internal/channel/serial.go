// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package channel

import (
	"fmt"
	"os"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
)

// serialPollMS is the driver-level read timeout. Idle reads return after
// this long so the reader goroutine can notice Close.
const serialPollMS = 100

// OpenSerial opens an 8N1 serial port as a line channel.
func OpenSerial(name, port string, baud int, readTimeout time.Duration) (*Stream, error) {
	serialOpts := serial.OpenOptions{
		PortName:              port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		ParityMode:            serial.PARITY_NONE,
		MinimumReadSize:       0,
		InterCharacterTimeout: serialPollMS,
	}

	rwc, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("%s channel: open %s: %w", name, port, err)
	}
	return NewStream(name, rwc, rwc, rwc, Options{ReadTimeout: readTimeout, RetryEOF: true}), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Stdio uses the process stdin/stdout as a channel. Closing it leaves the
// file descriptors open.
func Stdio(name string, readTimeout time.Duration) *Stream {
	return NewStream(name, os.Stdin, os.Stdout, nopCloser{}, Options{ReadTimeout: readTimeout})
}

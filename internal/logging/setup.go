/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package logging wires the daemon's log level and output destination,
// grounded on the teacher's own internal/logging/setup.go: logrus under
// github.com/containerd/log's formatting conventions, rotated with
// lumberjack when not logging to stdout.
package logging

import (
	"os"
	"path/filepath"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFileName = "nydusd.log"

// SetUp configures logrus's level and output. When logToStdout is false and
// logDir is set, the log is written there with a fixed rotation policy;
// with an empty logDir it goes to stdout.
func SetUp(logLevel string, logToStdout bool, logDir string) error {
	lvl, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)

	if logToStdout || logDir == "" {
		logrus.SetOutput(os.Stdout)
	} else {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return errors.Wrapf(err, "create log dir %s", logDir)
		}
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   filepath.Join(logDir, defaultLogFileName),
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}

	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: log.RFC3339NanoFixed,
		FullTimestamp:   true,
	})
	return nil
}

/*
 * Copyright (c) Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package api is the management API surface: an HTTP server over a Unix
// socket that translates JSON requests into Daemon façade calls, grounded
// on the teacher's pkg/system.Controller (gorilla/mux router, jsonResponse/
// errorMessage JSON envelope idiom).
package api

import (
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"

	"github.com/containerd/log"
	"github.com/dragonflyoss/image-service/pkg/backend"
	"github.com/dragonflyoss/image-service/pkg/daemon"
	"github.com/dragonflyoss/image-service/pkg/errdefs"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

const (
	endpointMount         = "/api/v1/mount"
	endpointDaemon        = "/api/v1/daemon"
	endpointDaemonBackend = "/api/v1/daemon/backend"
	endpointDaemonExit    = "/api/v1/daemon/exit"
	endpointDaemonStop    = "/api/v1/daemon/stop"
	endpointFuseTakeover  = "/api/v1/daemon/fuse/takeover"
)

const defaultErrorCode = "Unknown"

type errorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorMessage(message string) errorMessage {
	return errorMessage{Code: defaultErrorCode, Message: message}
}

func (m *errorMessage) encode() string {
	data, err := json.Marshal(m)
	if err != nil {
		log.L.Errorf("failed to encode error message: %s", err)
		return ""
	}
	return string(data)
}

// Server wraps a gorilla/mux router bound to a Unix socket, dispatching
// into a Daemon façade.
type Server struct {
	d      *daemon.Daemon
	addr   *net.UnixAddr
	router *mux.Router
}

// New builds a Server listening on sock (a filesystem path) and routes
// bound to d.
func New(d *daemon.Daemon, sock string) (*Server, error) {
	if err := os.MkdirAll(filepath.Dir(sock), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", sock)
	}
	if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "remove stale socket %s", sock)
	}

	addr, err := net.ResolveUnixAddr("unix", sock)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve address %s", sock)
	}

	s := &Server{d: d, addr: addr, router: mux.NewRouter()}
	s.registerRoutes()
	return s, nil
}

// Run starts serving on the Unix socket. It blocks until the listener
// fails.
func (s *Server) Run() error {
	log.L.Infof("starting management API server on %s", s.addr)
	listener, err := net.ListenUnix("unix", s.addr)
	if err != nil {
		return errors.Wrapf(err, "listen on socket %s", s.addr)
	}
	if err := http.Serve(listener, s.router); err != nil {
		return errors.Wrap(err, "management API serving")
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc(endpointMount, s.mount()).Methods(http.MethodPost)
	s.router.HandleFunc(endpointMount, s.remount()).Methods(http.MethodPut)
	s.router.HandleFunc(endpointMount, s.umount()).Methods(http.MethodDelete)
	s.router.HandleFunc(endpointDaemon, s.exportInfo()).Methods(http.MethodGet)
	s.router.HandleFunc(endpointDaemonBackend, s.exportBackendInfo()).Methods(http.MethodGet)
	s.router.HandleFunc(endpointDaemonExit, s.triggerExit()).Methods(http.MethodPut)
	s.router.HandleFunc(endpointDaemonStop, s.triggerStop()).Methods(http.MethodPut)
	s.router.HandleFunc(endpointFuseTakeover, s.triggerTakeover()).Methods(http.MethodPut)
}

func (s *Server) mount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd backend.MountCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeError(w, errdefs.New(errdefs.KindSerde, "decode mount command: "+err.Error()))
			return
		}
		if err := s.d.Mount(cmd); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) remount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd backend.MountCommand
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			writeError(w, errdefs.New(errdefs.KindSerde, "decode mount command: "+err.Error()))
			return
		}
		if mp := r.URL.Query().Get("mountpoint"); mp != "" {
			cmd.Mountpoint = mp
		}
		if err := s.d.Remount(cmd); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) umount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mp := r.URL.Query().Get("mountpoint")
		if err := s.d.Umount(backend.UnmountCommand{Mountpoint: mp}); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) exportInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.d.ExportInfo()
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, data)
	}
}

func (s *Server) exportBackendInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mp := r.URL.Query().Get("mountpoint")
		data, err := s.d.ExportBackendInfo(mp)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, data)
	}
}

func (s *Server) triggerExit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.d.TriggerExit(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) triggerStop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.d.TriggerStop(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) triggerTakeover() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.d.TriggerTakeover(); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func writeJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		log.L.Errorf("write response body: %s", err)
	}
}

// writeError maps an errdefs.Kind to an HTTP status and writes the
// {code, message} envelope.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var de *errdefs.DaemonError
	if errors.As(err, &de) {
		switch de.Kind {
		case errdefs.KindInvalidArguments, errdefs.KindInvalidConfig, errdefs.KindSerde:
			status = http.StatusBadRequest
		case errdefs.KindNotFound:
			status = http.StatusNotFound
		case errdefs.KindAlreadyExists, errdefs.KindAlreadyMounted:
			status = http.StatusConflict
		case errdefs.KindNotReady:
			status = http.StatusServiceUnavailable
		}
	}
	m := newErrorMessage(err.Error())
	http.Error(w, m.encode(), status)
}

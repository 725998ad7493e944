package ipc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"time"

	"go.uber.org/zap"
)

const timeLayout = time.RFC3339

// maxFrameBytes caps a single inbound line, matching the ACP
// transport's per-frame limit (internal/acp.MaxFrameBytes); the IPC
// wire format is unbounded by spec but commands are always small.
const maxFrameBytes = 1 << 20 // 1 MiB

// Server listens on a Unix domain socket and dispatches newline-
// delimited JSON requests to a Dispatcher, one connection at a time
// per client, any number of clients concurrently.
type Server struct {
	socketPath string
	dispatcher *Dispatcher
	logger     *zap.Logger

	listener net.Listener
}

// NewServer builds a Server bound to socketPath. The socket file is
// removed and recreated on Listen to recover from an unclean prior
// shutdown.
func NewServer(socketPath string, dispatcher *Dispatcher, logger *zap.Logger) *Server {
	return &Server{socketPath: socketPath, dispatcher: dispatcher, logger: logger}
}

// Listen binds the Unix domain socket. Call Serve afterward.
func (s *Server) Listen() error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("IPC server listening", zap.String("socket", s.socketPath))
	return nil
}

// Serve accepts connections until ctx is canceled or the listener is
// closed. Each connection is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.logger.Info("IPC server shutting down")
				return nil
			}
			s.logger.Warn("IPC accept failed", zap.Error(err))
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// Close releases the listener and removes the socket file.
func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	_ = os.Remove(s.socketPath)
	return err
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	br := bufio.NewReaderSize(conn, maxFrameBytes+1)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := br.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			s.writeResponse(conn, errorResponse("invalid json: line exceeds 1 MiB limit"))
			for errors.Is(err, bufio.ErrBufferFull) {
				_, err = br.ReadSlice('\n')
			}
			if err != nil && !errors.Is(err, io.EOF) {
				return
			}
			continue
		}
		if err != nil {
			return // EOF or connection error: client disconnected.
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}

		var req Request
		if jsonErr := json.Unmarshal(trimmed, &req); jsonErr != nil {
			s.writeResponse(conn, errorResponse("invalid json: "+jsonErr.Error()))
			continue
		}

		resp := s.dispatcher.Dispatch(ctx, req)
		s.writeResponse(conn, resp)
	}
}

func (s *Server) writeResponse(conn net.Conn, resp Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"ok":false,"error":"serialization failed"}`)
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		s.logger.Warn("failed to write IPC response", zap.Error(err))
	}
}
